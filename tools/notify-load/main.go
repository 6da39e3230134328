package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// notify-load drives the notify endpoint while a set of stream subscribers
// count what they receive, to size SUBSCRIBER_BUFFER.
func main() {
	baseURL := flag.String("url", "http://localhost:3001", "Dashboard server base URL")
	apiKey := flag.String("api-key", "", "API key for the notify endpoint")
	concurrency := flag.Int("c", 4, "Number of concurrent publishers")
	subscribers := flag.Int("s", 10, "Number of stream subscribers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 200, "Publish requests per second limit")
	flag.Parse()

	base := strings.TrimRight(*baseURL, "/")
	log.Printf("Starting notify load test on %s", base)
	log.Printf("Publishers: %d, Subscribers: %d, Duration: %s, RPS: %d", *concurrency, *subscribers, *duration, *rps)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var received atomic.Int64
	var subWG sync.WaitGroup
	for i := 0; i < *subscribers; i++ {
		subWG.Add(1)
		go func() {
			defer subWG.Done()
			subscribe(ctx, base+"/api/notifications", &received)
		}()
	}
	time.Sleep(500 * time.Millisecond) // let subscribers connect

	var wg sync.WaitGroup
	var successCount, errorCount atomic.Int64
	limiter := rate.NewLimiter(rate.Limit(*rps), 10)

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{
				Timeout: 5 * time.Second,
			}

			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				payload, _ := json.Marshal(map[string]any{
					"type":    "load_test",
					"message": "load test event",
					"data":    map[string]any{"id": uuid.NewString(), "worker": workerID},
				})

				req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/notify", bytes.NewReader(payload))
				if err != nil {
					continue
				}
				req.Header.Set("Content-Type", "application/json")
				if *apiKey != "" {
					req.Header.Set("X-API-Key", *apiKey)
				}

				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() == nil {
						errorCount.Add(1)
					}
					continue
				}
				if resp.StatusCode == http.StatusOK {
					successCount.Add(1)
				} else {
					errorCount.Add(1)
				}
				resp.Body.Close()
			}
		}(i)
	}

	wg.Wait()
	subWG.Wait()

	published := successCount.Load()
	expected := published * int64(*subscribers)

	log.Println("Load test finished.")
	log.Printf("Published (200 OK): %d", published)
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", float64(published+errorCount.Load())/duration.Seconds())
	log.Printf("Delivered: %d of %d expected", received.Load(), expected)
	if expected > 0 {
		log.Printf("Delivery ratio: %.2f%%", 100*float64(received.Load())/float64(expected))
	}
}

func subscribe(ctx context.Context, url string, received *atomic.Int64) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("subscribe failed: %v", err)
		return
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, `"load_test"`) {
			received.Add(1)
		}
	}
}
