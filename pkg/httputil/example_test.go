package httputil_test

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/fleetcast/pkg/httputil"
	"github.com/wonny/fleetcast/pkg/logger"
)

// Example_getJSON shows a rate-limited JSON fetch against an archive API
func Example_getJSON() {
	client := httputil.NewWithTimeout(logger.Nop(), 20*time.Second).
		WithRetry(3, time.Second).
		WithRateLimit(5)

	var body struct {
		Daily map[string][]interface{} `json:"daily"`
	}
	err := client.GetJSON(context.Background(), "https://archive-api.open-meteo.com/v1/archive?latitude=24.71&longitude=46.68", &body)
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		return
	}
	fmt.Printf("series: %d\n", len(body.Daily))
}
