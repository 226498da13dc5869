// Profiling:
// go build ./cmd/foreman-profile
// go tool pprof -http=":8000" -nodefraction=0.001 ./foreman-profile cpu.pprof

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/TheBitDrifter/foreman"
	"github.com/pkg/profile"
	"github.com/rs/zerolog"
)

type position struct {
	X float64
	Y float64
}

type velocity struct {
	X float64
	Y float64
}

type lifetime struct {
	Frames int
}

func main() {
	rounds := flag.Int("rounds", 10, "number of worlds to build")
	iters := flag.Int("iters", 1000, "updates per world")
	entities := flag.Int("entities", 10000, "entities per world")
	threads := flag.Int("threads", 0, "worker count, 0 uses the configured default")
	mem := flag.Bool("mem", false, "record allocations instead of CPU")
	flag.Parse()

	mode := profile.CPUProfile
	if *mem {
		mode = profile.MemProfileAllocs
	}
	p := profile.Start(mode, profile.ProfilePath("."), profile.NoShutdownHook)
	err := run(*rounds, *iters, *entities, *threads)
	p.Stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(rounds, iters, numEntities, threads int) error {
	pos := foreman.FactoryNewComponent[position]()
	vel := foreman.FactoryNewComponent[velocity]()
	life := foreman.FactoryNewComponent[lifetime]()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	opts := []foreman.Option{foreman.WithLogger(logger)}
	if threads > 0 {
		opts = append(opts, foreman.WithThreadCount(threads))
	}

	for range rounds {
		w, err := foreman.Factory.NewWorld(opts...)
		if err != nil {
			return err
		}
		for i := range numEntities {
			values := []foreman.ComponentValue{pos.New(position{}), vel.New(velocity{X: 1, Y: 1})}
			if i%4 == 0 {
				values = append(values, life.New(lifetime{Frames: i % 64}))
			}
			if _, err := w.CreateEntity(values...); err != nil {
				return err
			}
		}

		move := foreman.Factory.NewSystem("move", func(ctx *foreman.SystemContext) error {
			for _, row := range ctx.Entities().IterMut() {
				p := pos.GetFromRow(row)
				v := vel.GetFromRow(row)
				p.X += v.X
				p.Y += v.Y
			}
			return nil
		}).Writes(pos).Reads(vel)

		// Entities with a lifetime expire and are replaced, keeping the
		// population stable while exercising the deferred queue.
		expire := foreman.Factory.NewSystem("expire", func(ctx *foreman.SystemContext) error {
			for id, row := range ctx.Entities().IterMut() {
				l := life.GetFromRow(row)
				l.Frames--
				if l.Frames > 0 {
					continue
				}
				if err := ctx.DeleteEntity(id); err != nil {
					return err
				}
				if err := ctx.CreateEntity(pos.New(position{}), vel.New(velocity{X: 1}), life.New(lifetime{Frames: 64})); err != nil {
					return err
				}
			}
			return nil
		}).Writes(life).CanUpdate()

		for _, b := range []*foreman.SystemBuilder{move, expire} {
			if _, err := w.RegisterSystem(b); err != nil {
				return err
			}
		}

		for range iters {
			if err := w.Update(); err != nil {
				return err
			}
		}
		w.Logger().LogWorld(w, zerolog.InfoLevel)
	}
	return nil
}
