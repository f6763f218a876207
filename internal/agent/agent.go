// Package agent hosts the control core: one sequential loop that owns the
// LED state and serializes commands, effect ticks and fault notifications
// into ordered transitions. Nothing else mutates the state.
package agent

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"ledsignal-agent/internal/config"
	"ledsignal-agent/internal/core"
	"ledsignal-agent/internal/driver"
	"ledsignal-agent/internal/effect"
	"ledsignal-agent/internal/mqtt"
	"ledsignal-agent/internal/power"
	"ledsignal-agent/internal/proto"
	"ledsignal-agent/internal/scheduler"
	"ledsignal-agent/internal/server"
	"ledsignal-agent/internal/transport"
)

type Agent struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.Config
	wg     sync.WaitGroup

	state          *core.State
	eventBus       *core.EventBus
	commandChannel core.CommandChannel

	engine *effect.Engine
	drv    driver.Driver
	pwr    power.Interface
	conn   *transport.Conn
	faults <-chan struct{}

	sched      *scheduler.Scheduler
	mqttClient *mqtt.Client
	monitor    *server.Server

	// nowFn is the loop's clock; tests substitute it.
	nowFn func() time.Time

	tickInterval     time.Duration
	shutdownDeadline time.Duration
	defaultFlicker   effect.Range

	// Transition bookkeeping. Only the Run loop goroutine touches these.
	enteredAt    time.Time
	flicker      effect.Range
	flickerUntil time.Time
	shutdownFrom []int
	poweredOff   bool
}

func NewAgent(cfg *config.Config) (*Agent, error) {
	ctx, cancel := context.WithCancel(context.Background())

	// Durations were validated by config.Load.
	tickInterval, _ := time.ParseDuration(cfg.Agent.TickInterval)
	shutdownDeadline, _ := time.ParseDuration(cfg.Agent.ShutdownDeadline)
	faultPoll, _ := time.ParseDuration(cfg.Led.FaultPollInterval)
	beaconInterval, _ := time.ParseDuration(cfg.Transport.BeaconInterval)
	startupRamp, _ := time.ParseDuration(cfg.Effect.StartupRamp)
	shutdownRamp, _ := time.ParseDuration(cfg.Effect.ShutdownRamp)
	flickerTick, _ := time.ParseDuration(cfg.Effect.FlickerTick)

	a := &Agent{
		ctx:              ctx,
		cancel:           cancel,
		cfg:              cfg,
		state:            core.NewState(cfg.Led.Channels),
		eventBus:         core.NewEventBus(),
		commandChannel:   make(core.CommandChannel, 20),
		nowFn:            time.Now,
		tickInterval:     tickInterval,
		shutdownDeadline: shutdownDeadline,
		defaultFlicker: effect.Range{
			Min: cfg.Effect.DefaultFlickerMin,
			Max: cfg.Effect.DefaultFlickerMax,
		},
	}

	a.engine = effect.NewEngine(effect.Params{
		Channels:        cfg.Led.Channels,
		SteadyIntensity: cfg.Effect.SteadyIntensity,
		StartupRamp:     startupRamp,
		ShutdownRamp:    shutdownRamp,
		FlickerTick:     flickerTick,
		Seed:            cfg.Effect.FlickerSeed,
	})

	drv, acquired := driver.New(ctx, driver.Config{
		SysfsDir:      cfg.Led.SysfsDir,
		Leds:          cfg.Led.Leds,
		MaxBrightness: cfg.Led.MaxBrightness,
		RateLimit:     cfg.Led.WriteRateLimit,
		RateBurst:     cfg.Led.WriteRateBurst,
	})
	if len(cfg.Led.Leds) > 0 && !acquired {
		cancel()
		return nil, fmt.Errorf("failed to acquire LED driver for %d configured LEDs", len(cfg.Led.Leds))
	}
	a.drv = drv
	a.faults = driver.Watch(ctx, drv, faultPoll)
	a.pwr = power.New(cfg.Agent.PowerMode)

	conn, err := transport.Listen(
		cfg.Transport.ListenAddr,
		cfg.Transport.ControllerAddr,
		beaconInterval,
		a.commandChannel,
		a.beaconReport,
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to bind UDP socket: %w", err)
	}
	a.conn = conn

	a.sched = scheduler.NewScheduler(a.commandChannel, cfg.SchedulesFile)
	a.mqttClient = mqtt.NewClient(cfg, a.eventBus, a.state.Clone)
	if cfg.Monitor.Enabled {
		a.monitor = server.NewServer(a.eventBus, a.state.Clone, cfg.Monitor.Port, cfg.Monitor.AllowedOrigins)
	}

	return a, nil
}

// Run starts the side loops and then consumes the merged event sources until
// the agent is shut down. This goroutine is the sole writer of LED state.
func (a *Agent) Run() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.conn.Run(a.ctx)
	}()

	a.sched.Start()

	if a.mqttClient != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.mqttClient.Run(a.ctx)
		}()
	}
	if a.monitor != nil {
		go a.monitor.Run(a.ctx)
	}

	// Interfaces were confirmed ready during construction; leave Off now.
	a.transitionTo(core.ModeStartup)

	ticker := time.NewTicker(a.tickInterval)
	defer ticker.Stop()

	log.Println("[Agent] control loop ready")
	for {
		select {
		case <-a.ctx.Done():
			log.Println("[Agent] control loop shutting down...")
			return
		case cmd := <-a.commandChannel:
			a.handleCommand(cmd)
		case <-ticker.C:
			a.handleTick()
		case <-a.faults:
			a.handleFault()
		}
	}
}

// handleCommand applies one decoded command and sends the status reply.
func (a *Agent) handleCommand(cmd core.Command) {
	if a.state.Mode() == core.ModeTerminated {
		// Acknowledge but never act; terminal is terminal.
		a.reply(cmd, proto.StatusTerminal)
		return
	}

	switch cmd.Type {
	case core.CmdPing, core.CmdQuery:
		a.reply(cmd, proto.StatusOK)

	case core.CmdFlicker:
		mode := a.state.Mode()
		// A latched fault rejects flicker too; only SetMode clears it.
		if a.state.Fault() || (mode != core.ModeSteady && mode != core.ModeFlickering) {
			a.reply(cmd, proto.StatusInvalidTransition)
			return
		}
		// Latest command wins: parameters replace any in-flight flicker.
		a.flicker = effect.Range{Min: cmd.MinLevel, Max: cmd.MaxLevel}
		a.flickerUntil = a.nowFn().Add(cmd.Duration)
		if mode == core.ModeFlickering {
			a.applyStep(a.engine.Flicker(a.nowFn().Sub(a.enteredAt), a.flicker))
		} else {
			a.transitionTo(core.ModeFlickering)
		}
		a.reply(cmd, proto.StatusOK)

	case core.CmdSetMode:
		if !a.state.Mode().CanTransition(cmd.Mode) {
			a.reply(cmd, proto.StatusInvalidTransition)
			return
		}
		if cmd.Mode == core.ModeShuttingDown {
			a.beginShutdown()
			a.reply(cmd, proto.StatusOK)
			return
		}
		// An accepted SetMode clears a latched fault (startup retry path).
		if a.state.Fault() {
			a.state.SetFault(false)
			a.publish(core.FaultChangedEvent)
		}
		if cmd.Mode == core.ModeFlickering {
			a.flicker = a.defaultFlicker
			a.flickerUntil = time.Time{} // runs until the mode changes
		}
		a.transitionTo(cmd.Mode)
		a.reply(cmd, proto.StatusOK)

	case core.CmdShutdown:
		a.beginShutdown()
		a.reply(cmd, proto.StatusOK)

	default:
		log.Printf("[Agent] unknown command type: %s", cmd.Type)
	}
}

// handleTick advances the active effect by one sample.
func (a *Agent) handleTick() {
	mode := a.state.Mode()
	if mode == core.ModeTerminated {
		return
	}
	if a.state.Fault() && mode != core.ModeShuttingDown {
		// Frozen until a SetMode clears the fault.
		return
	}

	now := a.nowFn()
	elapsed := now.Sub(a.enteredAt)

	switch mode {
	case core.ModeStartup:
		if a.engine.StartupDone(elapsed) {
			a.transitionTo(core.ModeSteady)
			return
		}
		a.applyStep(a.engine.Startup(elapsed))

	case core.ModeFlickering:
		if !a.flickerUntil.IsZero() && now.After(a.flickerUntil) {
			a.transitionTo(core.ModeSteady)
			return
		}
		a.applyStep(a.engine.Flicker(elapsed, a.flicker))

	case core.ModeShuttingDown:
		values, done := a.engine.Shutdown(elapsed, a.shutdownFrom)
		if done || elapsed >= a.shutdownDeadline {
			a.finishShutdown()
			return
		}
		// Shutdown is not revocable: a failed write latches the fault
		// but the ramp and the deadline keep going.
		if err := a.writeChannels(values); err != nil {
			log.Printf("[Agent] shutdown ramp write failed: %v", err)
			a.setFault()
			return
		}
		a.state.SetChannels(values)
		a.publish(core.StateChangedEvent)
	}
	// Off and Steady are constant; nothing to write per tick.
}

// handleFault reacts to an asynchronous fault from the driver watcher:
// forced transition to Off with the fault flag latched.
func (a *Agent) handleFault() {
	mode := a.state.Mode()
	a.setFault()
	if mode == core.ModeShuttingDown || mode == core.ModeTerminated {
		return
	}

	log.Println("[Agent] hardware fault reported, forcing off")
	values := a.engine.Off()
	if err := a.writeChannels(values); err != nil {
		log.Printf("[Agent] blackout write failed: %v", err)
	} else {
		a.state.SetChannels(values)
	}
	now := a.nowFn()
	a.enteredAt = now
	a.state.SetMode(core.ModeOff, now)
	a.publish(core.ModeChangedEvent)
}

// transitionTo performs one atomic transition step: compute the first effect
// sample for the target mode, write it to the driver, and only then commit
// the new mode. A failed write aborts the step and latches the fault,
// leaving the previous state untouched.
func (a *Agent) transitionTo(mode core.Mode) bool {
	now := a.nowFn()
	values := a.sampleFor(mode, 0)
	if err := a.writeChannels(values); err != nil {
		log.Printf("[Agent] transition to %s aborted: %v", mode, err)
		a.setFault()
		return false
	}
	a.enteredAt = now
	a.state.SetMode(mode, now)
	a.state.SetChannels(values)
	log.Printf("[Agent] mode -> %s", mode)
	a.publish(core.ModeChangedEvent)
	return true
}

// applyStep writes one effect sample without changing mode. Same atomicity
// as transitionTo: an error aborts the commit and latches the fault.
func (a *Agent) applyStep(values []int) {
	if err := a.writeChannels(values); err != nil {
		log.Printf("[Agent] effect step aborted: %v", err)
		a.setFault()
		return
	}
	a.state.SetChannels(values)
	a.publish(core.StateChangedEvent)
}

func (a *Agent) sampleFor(mode core.Mode, elapsed time.Duration) []int {
	switch mode {
	case core.ModeStartup:
		return a.engine.Startup(elapsed)
	case core.ModeSteady:
		return a.engine.Steady()
	case core.ModeFlickering:
		return a.engine.Flicker(elapsed, a.flicker)
	case core.ModeShuttingDown:
		values, _ := a.engine.Shutdown(elapsed, a.shutdownFrom)
		return values
	default:
		return a.engine.Off()
	}
}

func (a *Agent) writeChannels(values []int) error {
	for channel, value := range values {
		if err := a.drv.SetIntensity(channel, value); err != nil {
			return err
		}
	}
	return nil
}

// beginShutdown enters ShuttingDown once per process lifetime. The shutdown
// ramp starts from the intensities on display when the command arrived.
func (a *Agent) beginShutdown() {
	mode := a.state.Mode()
	if mode == core.ModeShuttingDown || mode == core.ModeTerminated {
		return
	}
	log.Println("[Agent] shutdown commanded")
	a.shutdownFrom = a.state.Clone().Channels
	if !a.transitionTo(core.ModeShuttingDown) {
		// The driver refused the first ramp write. Shutdown proceeds
		// anyway; the deadline in handleTick forces power-off.
		now := a.nowFn()
		a.enteredAt = now
		a.state.SetMode(core.ModeShuttingDown, now)
		a.publish(core.ModeChangedEvent)
	}
}

// finishShutdown blacks out, requests host power-off exactly once and lands
// in Terminated.
func (a *Agent) finishShutdown() {
	values := a.engine.Off()
	if err := a.writeChannels(values); err != nil {
		log.Printf("[Agent] final blackout write failed: %v", err)
	} else {
		a.state.SetChannels(values)
	}

	if !a.poweredOff {
		a.poweredOff = true
		if err := a.pwr.PowerOff(); err != nil {
			// Log and continue to Terminated; the process cannot
			// meaningfully recover from a failed power-off request.
			log.Printf("[Agent] power-off request failed: %v", err)
		}
	}

	a.state.SetMode(core.ModeTerminated, a.nowFn())
	log.Println("[Agent] terminated")
	a.publish(core.ModeChangedEvent)
}

func (a *Agent) setFault() {
	a.state.SetFault(true)
	a.publish(core.FaultChangedEvent)
}

func (a *Agent) publish(t core.EventType) {
	a.eventBus.Publish(core.Event{Type: t, State: a.state.Clone()})
}

// reply sends the status report for a handled command. Internally generated
// commands have no peer and get no reply.
func (a *Agent) reply(cmd core.Command, status byte) {
	if cmd.Peer == nil || a.conn == nil {
		return
	}
	a.conn.Send(cmd.Peer, a.report(proto.OpcodeFor(cmd.Type), status))
}

func (a *Agent) report(opcode, status byte) proto.StatusReport {
	snap := a.state.Clone()
	return proto.StatusReport{
		Opcode:    opcode,
		Status:    status,
		Mode:      snap.Mode,
		Fault:     snap.Fault,
		Intensity: snap.Aggregate(),
	}
}

// beaconReport builds the unsolicited stay-alive status for the transport.
func (a *Agent) beaconReport() proto.StatusReport {
	status := proto.StatusOK
	if a.state.Mode() == core.ModeTerminated {
		status = proto.StatusTerminal
	}
	return a.report(proto.OpQuery, status)
}

// Shutdown tears the process down (SIGTERM path). Distinct from the wire
// Shutdown command, which powers off the host.
func (a *Agent) Shutdown() {
	a.sched.Stop()
	if a.monitor != nil {
		_ = a.monitor.Shutdown(context.Background())
	}
	a.cancel()
	_ = a.conn.Close() // unblocks the receive loop
	a.wg.Wait()
	if err := a.drv.Close(); err != nil {
		log.Printf("[Agent] driver close: %v", err)
	}
}
