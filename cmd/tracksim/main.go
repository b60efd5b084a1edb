// tracksim publishes a synthetic tracker feed for exercising the vision
// controller without a camera: a target sweeping across the frame while its
// apparent size breathes around the standoff area.
package main

import (
	"flag"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"QuadPilot/internal/util"
)

type detection struct {
	Cx   float64 `json:"cx"`
	Cy   float64 `json:"cy"`
	Area float64 `json:"area"`
	TsMs int64   `json:"ts_ms"`
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func main() {
	listen := flag.String("listen", ":9100", "feed listen address")
	rateMs := flag.Int("rate", 100, "detection interval in ms")
	logLevel := flag.String("log-level", "info", "zerolog level")
	flag.Parse()

	logger := util.InitLogger("tracksim", *logLevel)

	interval := time.Duration(*rateMs) * time.Millisecond
	http.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("viewer connected")

		start := time.Now()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			t := time.Since(start).Seconds()
			det := detection{
				Cx:   0.5 + 0.3*math.Sin(t/2),
				Cy:   0.5,
				Area: 0.15 + 0.1*math.Sin(t/5),
				TsMs: time.Now().UnixMilli(),
			}
			if err := conn.WriteJSON(det); err != nil {
				logger.Info().Err(err).Msg("viewer disconnected")
				return
			}
		}
	})

	logger.Info().Str("listen", *listen).Msg("tracker simulator up")
	if err := http.ListenAndServe(*listen, nil); err != nil {
		logger.Fatal().Err(err).Msg("feed server failed")
	}
}
