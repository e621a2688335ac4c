//go:build js && wasm

// Command framescrub-wasm exposes the scrubber to JavaScript:
//
//	const id = framescrubConnect(canvas, hostElement, {srcs, sizes, preload, totalFrames})
//	framescrubDisconnect(id)
package main

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"syscall/js"

	"github.com/ivlev/framescrub/internal/config"
	"github.com/ivlev/framescrub/internal/host/dom"
	"github.com/ivlev/framescrub/internal/scrubber"
)

var (
	mu          sync.Mutex
	nextID      int
	controllers = map[int]*scrubber.Controller{}
	logger      = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
)

func main() {
	js.Global().Set("framescrubConnect", js.FuncOf(connect))
	js.Global().Set("framescrubDisconnect", js.FuncOf(disconnect))
	select {}
}

func connect(_ js.Value, args []js.Value) any {
	if len(args) < 3 {
		logger.Warn("framescrubConnect needs canvas, host element and values")
		return -1
	}
	canvas, element, v := args[0], args[1], args[2]

	cfg := config.Default()
	cfg.Values = config.Values{
		Srcs:        stringProp(v, "srcs"),
		Sizes:       stringProp(v, "sizes"),
		Preload:     v.Get("preload").Truthy(),
		TotalFrames: intProp(v, "totalFrames"),
	}
	if th := v.Get("threshold"); th.Type() == js.TypeNumber {
		cfg.Threshold = th.Float()
	}
	if rm := v.Get("rootMargin"); rm.Type() == js.TypeNumber {
		cfg.RootMargin = rm.Float()
	}

	host := dom.NewHost(element, canvas, cfg.Threshold, cfg.RootMargin)
	c, err := scrubber.FromConfig(host, dom.NewBaseLoader(), cfg, scrubber.WithLogger(logger))
	if err != nil {
		logger.Warn("framescrub config rejected", "err", err)
		return -1
	}
	if err := c.Connect(context.Background()); err != nil {
		logger.Warn("framescrub connect failed", "err", err)
		return -1
	}

	mu.Lock()
	defer mu.Unlock()
	nextID++
	controllers[nextID] = c
	return nextID
}

func disconnect(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return nil
	}
	id := args[0].Int()

	mu.Lock()
	c, ok := controllers[id]
	delete(controllers, id)
	mu.Unlock()

	if ok {
		c.Disconnect()
	}
	return nil
}

func stringProp(v js.Value, name string) string {
	p := v.Get(name)
	if p.IsUndefined() || p.IsNull() {
		return ""
	}
	return p.String()
}

func intProp(v js.Value, name string) int {
	p := v.Get(name)
	if p.Type() != js.TypeNumber {
		return 0
	}
	return p.Int()
}
