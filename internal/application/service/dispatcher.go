package service

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/domain/event"
	"github.com/personal/ad-lifecycle/internal/lifecycle"
	"github.com/personal/ad-lifecycle/pkg/logger"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

// Dispatcher is the registry of ad unit controllers. It routes load, show and
// native requests by (format, name) and owns the rule that at most one
// full-screen ad is on screen at a time.
//
// Methods may be called from any goroutine. Work on controllers is posted to
// the scheduler and callbacks run there.
type Dispatcher struct {
	mu    sync.RWMutex
	units map[ad.Key]*registeredUnit

	source ad.Source
	sched  lifecycle.Scheduler
	sink   event.Sink
	screen *screenLock
	logger *logger.Logger
}

type registeredUnit struct {
	config ad.UnitConfig
	ctrl   *lifecycle.Controller
}

// status names units that were never configured, such as disabled ones.
// Callers hold the dispatcher lock.
func (u *registeredUnit) status() lifecycle.Status {
	s := u.ctrl.Status()
	if s.Name == "" {
		s.Name = u.config.Name()
	}
	return s
}

// NewDispatcher creates an empty Dispatcher
func NewDispatcher(source ad.Source, sched lifecycle.Scheduler, sink event.Sink, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Discard()
	}
	return &Dispatcher{
		units:  make(map[ad.Key]*registeredUnit),
		source: source,
		sched:  sched,
		sink:   sink,
		screen: &screenLock{},
		logger: log,
	}
}

// Register creates the controller for a unit and, if the unit is enabled,
// configures it, which starts its first load. Registering an existing key
// is a no-op.
func (d *Dispatcher) Register(unit ad.UnitConfig) error {
	policy, err := ad.ResolvePolicy(unit.Format(), unit)
	if err != nil {
		return err
	}

	d.mu.Lock()
	if _, exists := d.units[unit.Key()]; exists {
		d.mu.Unlock()
		d.logger.WithField("unit", unit.Key().String()).Debug("Unit already registered")
		return nil
	}
	ctrl := lifecycle.NewController(policy, lifecycle.Dependencies{
		Source:    d.source,
		Scheduler: d.sched,
		Sink:      d.sink,
		Screen:    d.screen,
		Logger:    d.logger,
	})
	d.units[unit.Key()] = &registeredUnit{config: unit, ctrl: ctrl}
	d.mu.Unlock()

	monitoring.IncRegisteredUnits(string(unit.Format()))
	d.warnNames(unit)

	log := d.logger.WithFields(logger.Fields{
		"format": unit.Format(),
		"name":   unit.Name(),
	})
	if !unit.Enabled() {
		log.Info("Unit registered disabled")
		return nil
	}
	log.Info("Unit registered")

	identity := identityOf(unit)
	d.sched.Post(func() {
		ctrl.Configure(identity)
	})
	return nil
}

// RegisterAll registers every unit and returns the first error
func (d *Dispatcher) RegisterAll(units []ad.UnitConfig) error {
	for _, unit := range units {
		if err := d.Register(unit); err != nil {
			return fmt.Errorf("failed to register %s: %w", unit.Key(), err)
		}
	}
	return nil
}

// Reconfigure swaps the ad unit id and placement of a registered unit and
// restarts its load cycle. The timeout and reuse interval keep the values
// from registration because the controller's policy is fixed.
func (d *Dispatcher) Reconfigure(unit ad.UnitConfig) error {
	if !unit.Enabled() {
		return fmt.Errorf("%w: cannot reconfigure disabled unit %s", ad.ErrInvalidConfiguration, unit.Key())
	}

	d.mu.Lock()
	entry, ok := d.units[unit.Key()]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ad.ErrNotFound, unit.Key())
	}
	entry.config = unit.WithTimings(entry.config)
	d.mu.Unlock()

	identity := identityOf(unit)
	d.sched.Post(func() {
		entry.ctrl.Reconfigure(identity)
	})
	return nil
}

// RequestLoad asks the unit to load. Outcomes are reported through cb.
func (d *Dispatcher) RequestLoad(format ad.Format, name string, cb lifecycle.LoadCallbacks) error {
	entry, err := d.lookup(format, name)
	if err != nil {
		return err
	}
	d.sched.Post(func() {
		entry.ctrl.Load(cb)
	})
	return nil
}

// RequestShow asks the unit to present its ad on host. An empty placement
// uses the unit's configured placement. Rejections are reported through
// cb.DidFail.
func (d *Dispatcher) RequestShow(format ad.Format, name string, host ad.Host, placement string, cb lifecycle.ShowCallbacks) error {
	entry, err := d.lookup(format, name)
	if err != nil {
		return err
	}
	if !entry.ctrl.Policy().Presentable {
		return fmt.Errorf("%w: %s ads are bound, not shown", ad.ErrInvalidConfiguration, format)
	}
	if placement == "" {
		placement = d.configOf(entry).Placement()
	}
	d.sched.Post(func() {
		entry.ctrl.Show(host, placement, cb)
	})
	return nil
}

// CheckReady reports through ready whether the unit holds an ad. The check
// may start a reload for formats that reload before showing.
func (d *Dispatcher) CheckReady(format ad.Format, name string, ready func(bool)) error {
	entry, err := d.lookup(format, name)
	if err != nil {
		return err
	}
	d.sched.Post(func() {
		ready(entry.ctrl.IsReadyToShow())
	})
	return nil
}

// Observe subscribes cb to every load cycle of the unit. The returned
// function unsubscribes.
func (d *Dispatcher) Observe(format ad.Format, name string, cb lifecycle.LoadCallbacks) (func(), error) {
	entry, err := d.lookup(format, name)
	if err != nil {
		return nil, err
	}

	// Both closures run on the scheduler, subscribe first.
	var unsubscribe func()
	d.sched.Post(func() {
		unsubscribe = entry.ctrl.Observe(cb)
	})

	return func() {
		d.sched.Post(func() {
			unsubscribe()
		})
	}, nil
}

// BindNative attaches a host view to a native unit. cb.DidReceive is called
// once the ad is available; loading is driven by configuration only.
func (d *Dispatcher) BindNative(name string, host ad.Host, cb lifecycle.NativeCallbacks) error {
	entry, err := d.lookup(ad.FormatNative, name)
	if err != nil {
		return err
	}
	placement := d.configOf(entry).Placement()
	d.sched.Post(func() {
		entry.ctrl.BindNative(host, placement, cb)
	})
	return nil
}

// NativeHandle returns the native ad currently held by the unit
func (d *Dispatcher) NativeHandle(name string) (ad.Handle, bool, error) {
	entry, err := d.lookup(ad.FormatNative, name)
	if err != nil {
		return nil, false, err
	}
	h := entry.ctrl.Status().Handle
	return h, h != nil, nil
}

// Status returns the snapshot of one unit
func (d *Dispatcher) Status(format ad.Format, name string) (lifecycle.Status, error) {
	entry, err := d.lookup(format, name)
	if err != nil {
		return lifecycle.Status{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return entry.status(), nil
}

// Unit returns the configuration a unit was registered with
func (d *Dispatcher) Unit(format ad.Format, name string) (ad.UnitConfig, error) {
	entry, err := d.lookup(format, name)
	if err != nil {
		return ad.UnitConfig{}, err
	}
	return d.configOf(entry), nil
}

// Units returns the snapshot of every registered unit ordered by key
func (d *Dispatcher) Units() []lifecycle.Status {
	d.mu.RLock()
	statuses := make([]lifecycle.Status, 0, len(d.units))
	for _, entry := range d.units {
		statuses = append(statuses, entry.status())
	}
	d.mu.RUnlock()

	sort.Slice(statuses, func(i, j int) bool {
		if statuses[i].Format != statuses[j].Format {
			return statuses[i].Format < statuses[j].Format
		}
		return statuses[i].Name < statuses[j].Name
	})
	return statuses
}

// FullScreenShowing reports whether a full-screen ad currently holds the screen
func (d *Dispatcher) FullScreenShowing() bool {
	return d.screen.showing.Load()
}

func (d *Dispatcher) lookup(format ad.Format, name string) (*registeredUnit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entry, ok := d.units[ad.Key{Format: format, Name: name}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ad.ErrNotFound, format, name)
	}
	return entry, nil
}

// configOf returns the entry's current configuration, which Reconfigure may replace
func (d *Dispatcher) configOf(entry *registeredUnit) ad.UnitConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return entry.config
}

// warnNames logs configured names that would produce invalid event names.
// Registration still succeeds.
func (d *Dispatcher) warnNames(unit ad.UnitConfig) {
	names := []string{unit.Name()}
	if unit.Placement() != unit.Name() {
		names = append(names, unit.Placement())
	}
	for _, name := range names {
		if err := event.CheckName(name, event.MaxConfiguredNameLength); err != nil {
			d.logger.WithError(err).WithField("unit", unit.Key().String()).Warn("Configured name is not a valid analytics name")
			monitoring.RecordConfigWarning("configured_name")
		}
	}
}

func identityOf(unit ad.UnitConfig) lifecycle.Identity {
	return lifecycle.Identity{
		UnitID:          unit.UnitID(),
		Name:            unit.Name(),
		FullScreenMedia: unit.FullScreenMedia(),
	}
}

// screenLock is the process-wide full-screen exclusivity flag. Only the
// scheduler writes it; showing mirrors it for readers on other goroutines.
type screenLock struct {
	holder  string
	showing atomic.Bool
}

func (l *screenLock) TryAcquire(owner string) bool {
	if l.holder != "" && l.holder != owner {
		return false
	}
	l.holder = owner
	l.showing.Store(true)
	return true
}

func (l *screenLock) Release(owner string) {
	if l.holder != owner {
		return
	}
	l.holder = ""
	l.showing.Store(false)
}
