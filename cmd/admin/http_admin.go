package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jcvilalta/MineDeezCoords/internal/transport/observer"
)

const defaultBotURL = "http://127.0.0.1:8090"

func liveCmd(args []string) {
	fs := flag.NewFlagSet("live", flag.ExitOnError)
	baseURL := fs.String("url", defaultBotURL, "bot base url")
	_ = fs.Parse(args)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/observer/latest"
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fail("request", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintln(os.Stderr, strings.TrimSpace(string(b)))
		os.Exit(1)
	}
	var latest observer.LatestResponse
	if err := json.NewDecoder(resp.Body).Decode(&latest); err != nil {
		fail("decode", err)
	}
	if latest.Summary == nil {
		fmt.Println("nothing published yet")
		return
	}
	fmt.Println(latest.Summary.Text())
	fmt.Printf("\nseq=%d subscribers=%d\n", latest.Seq, latest.Subscribers)
}

func backupNowCmd(args []string) {
	fs := flag.NewFlagSet("backup-now", flag.ExitOnError)
	baseURL := fs.String("url", defaultBotURL, "bot base url")
	_ = fs.Parse(args)
	post(strings.TrimRight(strings.TrimSpace(*baseURL), "/")+"/admin/v1/backup", 10*time.Second)
}

func resyncCmd(args []string) {
	fs := flag.NewFlagSet("resync", flag.ExitOnError)
	baseURL := fs.String("url", defaultBotURL, "bot base url")
	_ = fs.Parse(args)
	post(strings.TrimRight(strings.TrimSpace(*baseURL), "/")+"/admin/v1/resync", 30*time.Second)
}

func post(u string, timeout time.Duration) {
	req, _ := http.NewRequest(http.MethodPost, u, nil)
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fail("request", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
