// Package sim replays scripted viewer behaviour against a quiz session on a
// virtual clock. Playback time and timer time advance together by a fixed
// tick, so runs are deterministic.
package sim

import (
	_ "embed"
	"fmt"
	"math"
	"sort"

	"cuequiz-service/internal/app"
	"cuequiz-service/internal/domain"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const defaultTick = 0.25

//go:embed demo.yaml
var demoYAML []byte

// Step is one scripted viewer action at wall-clock time At (seconds since start).
type Step struct {
	At       float64 `yaml:"at"`
	Action   string  `yaml:"action"` // select, submit, hint, seek, reset, start
	Question int     `yaml:"question"`
	Value    string  `yaml:"value"`
	To       float64 `yaml:"to"` // seek target
}

// Script describes a whole run.
type Script struct {
	Catalog    string  `yaml:"catalog"`
	Duration   float64 `yaml:"duration"`
	Tick       float64 `yaml:"tick"`
	Permission *bool   `yaml:"permission"`
	Steps      []Step  `yaml:"steps"`
}

// Event is a line of the run trace.
type Event struct {
	At       float64
	Position float64
	Kind     string
	Detail   string
}

// Result is the outcome of a run.
type Result struct {
	Final domain.Snapshot
	Trace []Event
}

// Demo returns the built-in script.
func Demo() Script {
	s, err := ParseScript(demoYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded script: %v", err))
	}
	return s
}

// ParseScript decodes a YAML script.
func ParseScript(data []byte) (Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Script{}, fmt.Errorf("decode script: %w", err)
	}
	if s.Duration <= 0 {
		return Script{}, fmt.Errorf("script duration must be positive")
	}
	sort.SliceStable(s.Steps, func(i, j int) bool { return s.Steps[i].At < s.Steps[j].At })
	return s, nil
}

type pendingTimer struct {
	due   float64
	timer app.Timer
}

type runner struct {
	session  *app.Session
	script   Script
	logger   zerolog.Logger
	wall     float64
	position float64
	timers   []pendingTimer
	trace    []Event
	last     domain.Snapshot
}

// Run plays script against a fresh session for catalog.
func Run(catalog domain.Catalog, script Script, opts app.Options, logger zerolog.Logger) (Result, error) {
	tick := script.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	r := &runner{
		session: app.NewSession("simulation", catalog, opts),
		script:  script,
		logger:  logger,
	}
	r.last = r.session.Snapshot()

	granted := script.Permission == nil || *script.Permission
	if err := r.session.Start(granted); err != nil {
		r.record("start", err.Error())
		return Result{Final: r.session.Snapshot(), Trace: r.trace}, err
	}
	r.record("start", "playing")

	steps := script.Steps
	// Bounded so a script that never completes still terminates.
	limit := int(math.Ceil((script.Duration+60)/tick)) + len(steps)
	for i := 0; i <= limit; i++ {
		r.fireDue()
		if r.session.Phase() == domain.PhasePlaying {
			if r.position >= script.Duration {
				r.position = script.Duration
				r.sample()
				r.end()
			} else {
				r.sample()
			}
		}
		for len(steps) > 0 && steps[0].At <= r.wall {
			r.apply(steps[0])
			steps = steps[1:]
		}
		if r.session.Phase() == domain.PhaseComplete {
			break
		}
		r.wall += tick
		r.position += tick
	}
	return Result{Final: r.session.Snapshot(), Trace: r.trace}, nil
}

func (r *runner) fireDue() {
	sort.SliceStable(r.timers, func(i, j int) bool { return r.timers[i].due < r.timers[j].due })
	for len(r.timers) > 0 && r.timers[0].due <= r.wall+1e-9 {
		t := r.timers[0]
		r.timers = r.timers[1:]
		if r.session.Fire(t.timer) {
			r.record("timer", string(t.timer.Kind))
		} else {
			r.record("timer", string(t.timer.Kind)+" discarded")
		}
	}
}

func (r *runner) schedule(t app.Timer) {
	r.timers = append(r.timers, pendingTimer{due: r.wall + t.Delay.Seconds(), timer: t})
}

func (r *runner) sample() {
	if err := r.session.Sample(r.position, r.script.Duration); err != nil {
		r.logger.Debug().Err(err).Msg("sample rejected")
		return
	}
	snap := r.session.Snapshot()
	if snap.ActiveID != r.last.ActiveID {
		r.record("active", fmt.Sprintf("question %d", snap.ActiveID))
	}
	if snap.Countdown != r.last.Countdown && snap.Countdown > 0 {
		r.record("countdown", fmt.Sprintf("%ds", snap.Countdown))
	}
	r.last = snap
}

func (r *runner) end() {
	t, err := r.session.End()
	if err != nil {
		r.logger.Debug().Err(err).Msg("end rejected")
		return
	}
	r.record("ended", "loading results")
	r.schedule(t)
}

func (r *runner) apply(step Step) {
	var err error
	switch step.Action {
	case "select":
		err = r.session.Select(step.Question, step.Value)
	case "submit":
		var t app.Timer
		t, err = r.session.Submit(step.Question)
		if err == nil {
			r.schedule(t)
			r.record("reveal", fmt.Sprintf("question %d correct=%t", step.Question, r.session.Correct(step.Question)))
		}
	case "hint":
		err = r.session.ToggleHint()
	case "seek":
		r.position = step.To
	case "reset":
		r.session.Reset()
	case "start":
		granted := r.script.Permission == nil || *r.script.Permission
		err = r.session.Start(granted)
	default:
		err = fmt.Errorf("unknown action %q", step.Action)
	}
	detail := step.Action
	if err != nil {
		detail += ": " + err.Error()
		r.logger.Debug().Err(err).Str("action", step.Action).Msg("step rejected")
	}
	r.record("step", detail)
	r.last = r.session.Snapshot()
}

func (r *runner) record(kind, detail string) {
	r.trace = append(r.trace, Event{At: r.wall, Position: r.position, Kind: kind, Detail: detail})
	r.logger.Debug().Float64("wall", r.wall).Float64("position", r.position).Str("kind", kind).Msg(detail)
}
