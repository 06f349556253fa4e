// Command felmon is a read-only HTTP status server: it opens its own FEL
// session and exposes that session's transfer stats and host resource
// usage as JSON. The only FEL command it issues is VERSION, sent from
// /status until the SoC has been identified.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	psutil "github.com/shirou/gopsutil/v3/cpu"
	psmem "github.com/shirou/gopsutil/v3/mem"

	"hasher-fel/internal/fel"
	"hasher-fel/internal/felconfig"
)

var (
	httpAddr = flag.String("addr", ":8742", "listen address for the status server")
	busFlag  = flag.Int("bus", -1, "USB bus number (-1 = discover by VID/PID)")
	devFlag  = flag.Int("device", -1, "USB device number (-1 = discover by VID/PID)")
)

type statusResponse struct {
	Session  fel.StatsSnapshot `json:"session"`
	SoC      string            `json:"soc,omitempty"`
	CPU      float64           `json:"cpu_percent"`
	MemUsed  uint64            `json:"mem_used_bytes"`
	MemTotal uint64            `json:"mem_total_bytes"`
	Uptime   string            `json:"uptime"`
}

func main() {
	flag.Parse()

	cfg, err := felconfig.Load()
	if err != nil {
		log.Fatalf("felmon: loading config: %v", err)
	}
	bus, dev := cfg.Bus, cfg.Device
	if *busFlag >= 0 {
		bus = *busFlag
	}
	if *devFlag >= 0 {
		dev = *devFlag
	}

	session, err := fel.OpenSession(bus, dev)
	if err != nil {
		log.Fatalf("felmon: opening FEL session: %v", err)
	}
	defer session.Close()
	session.Verbose = cfg.Verbose
	if cfg.Timeout > 0 {
		session.Timeout = cfg.Timeout
	}

	start := time.Now()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/status", func(c *gin.Context) {
		cpuPercent, _ := psutil.Percent(0, false)
		memInfo, _ := psmem.VirtualMemory()

		resp := statusResponse{
			Session: session.Stats(),
			Uptime:  time.Since(start).String(),
		}
		if len(cpuPercent) > 0 {
			resp.CPU = cpuPercent[0]
		}
		if memInfo != nil {
			resp.MemUsed = memInfo.Used
			resp.MemTotal = memInfo.Total
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if soc, err := session.SoC(ctx); err == nil {
			resp.SoC = soc.Name
		}

		c.JSON(http.StatusOK, resp)
	})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	srv := &http.Server{Addr: *httpAddr, Handler: router}

	go func() {
		log.Printf("felmon listening on %s", *httpAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("felmon: server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("felmon: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("felmon: shutdown error: %v", err)
	}
}
