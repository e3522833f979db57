//go:build ignore

// failover_drill checks failover and stale-cache behavior of a running
// gateway. Start two mockbackend instances and the gateway, then run the
// drill and stop the primary when prompted.
//
// Usage:
//
//	go run failover_drill.go -gateway http://localhost:8080 -requests 20
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/bytedance/sonic"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

type phaseResult struct {
	backends map[string]int
	cache    map[string]int
	failed   int
}

func main() {
	var (
		gateway  = flag.String("gateway", "http://localhost:8080", "Gateway URL")
		path     = flag.String("path", "/api/videos", "Cacheable path to request")
		requests = flag.Int("requests", 20, "Requests per phase")
		noPrompt = flag.Bool("no-prompt", false, "Do not wait between phases")
	)
	flag.Parse()

	client := &http.Client{Timeout: 30 * time.Second}
	url := *gateway + *path

	fmt.Println(colorCyan + "━━━ FAILOVER DRILL ━━━" + colorReset)

	fmt.Println(colorBlue + "\nPHASE 1: Normal operation" + colorReset)
	normal := runPhase(client, url, *requests)
	report(normal)
	if len(normal.backends) == 0 {
		fmt.Println(colorRed + "  ✗ No backend answered. Is the gateway running?" + colorReset)
		os.Exit(1)
	}

	pause(*noPrompt, "Stop the primary backend, then press Enter")

	fmt.Println(colorBlue + "\nPHASE 2: Primary down" + colorReset)
	failover := runPhase(client, url, *requests)
	report(failover)
	if failover.failed == 0 {
		fmt.Println(colorGreen + "  ✓ Every request was answered after the primary went down" + colorReset)
	} else {
		fmt.Println(colorYellow + "  ⚠ Some requests failed during failover" + colorReset)
	}

	pause(*noPrompt, "Stop the secondary backend too, then press Enter")

	fmt.Println(colorBlue + "\nPHASE 3: All backends down" + colorReset)
	outage := runPhase(client, url, *requests)
	report(outage)
	if outage.cache["stale"] > 0 {
		fmt.Println(colorGreen + "  ✓ Stale cache served during the outage" + colorReset)
	}

	fmt.Println(colorBlue + "\nGateway status" + colorReset)
	printJSON(client, *gateway+"/status")
	fmt.Println(colorBlue + "\nPerformance metrics" + colorReset)
	printJSON(client, *gateway+"/metrics")
}

func runPhase(client *http.Client, url string, n int) phaseResult {
	res := phaseResult{backends: map[string]int{}, cache: map[string]int{}}

	for i := 0; i < n; i++ {
		resp, err := client.Get(url)
		if err != nil {
			fmt.Printf(colorRed+"  Request %d: ERROR - %v\n"+colorReset, i+1, err)
			res.failed++
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		res.cache[resp.Header.Get("X-Cache")]++
		if resp.StatusCode >= 500 {
			fmt.Printf(colorYellow+"  Request %d: Status=%d request_id=%s\n"+colorReset,
				i+1, resp.StatusCode, resp.Header.Get("X-Request-ID"))
			res.failed++
			continue
		}
		backend := resp.Header.Get("X-Backend-Server")
		if backend == "" {
			backend = "(cache)"
		}
		res.backends[backend]++
	}
	return res
}

func report(res phaseResult) {
	for backend, count := range res.backends {
		fmt.Printf("    %s → %d requests\n", backend, count)
	}
	for kind, count := range res.cache {
		fmt.Printf("    X-Cache %s → %d\n", kind, count)
	}
	fmt.Printf("    failed → %d\n", res.failed)
}

func pause(skip bool, msg string) {
	if skip {
		time.Sleep(2 * time.Second)
		return
	}
	fmt.Printf(colorYellow+"\n%s"+colorReset, msg)
	_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
}

func printJSON(client *http.Client, url string) {
	resp, err := client.Get(url)
	if err != nil {
		fmt.Printf(colorRed+"  %v\n"+colorReset, err)
		return
	}
	defer resp.Body.Close()

	var doc any
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&doc); err != nil {
		fmt.Printf(colorRed+"  decode: %v\n"+colorReset, err)
		return
	}
	out, _ := sonic.ConfigStd.MarshalIndent(doc, "  ", "  ")
	fmt.Println("  " + string(out))
}
