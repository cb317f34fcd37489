package inventory

import (
	"context"
	"log/slog"
	"sort"

	"github.com/warp/stockroom/lock"
)

// Locker hands out exclusive keyed locks. lock.Local and lock.Redis satisfy it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func materialKey(id MaterialID) string { return "material:" + string(id) }
func employeeKey(id EmployeeID) string { return "employee:" + string(id) }
func movementKey(id MovementID) string { return "movement:" + string(id) }

// LockAll acquires every key in sorted order, skipping duplicates.
// The returned func releases them in reverse order.
func LockAll(ctx context.Context, l Locker, keys ...string) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	var unlocks []func()
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	prev := ""
	for i, key := range sorted {
		if i > 0 && key == prev {
			continue
		}
		prev = key
		unlock, err := l.Lock(ctx, key)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

// DefaultLowStockThreshold: remaining stock below this is reported as low.
const DefaultLowStockThreshold int64 = 5

// Deps are the collaborators shared by Recorder and Sessions.
type Deps struct {
	Store     TxStore
	Locker    Locker    // nil: lock.NewLocal()
	Clock     Clock     // nil: SystemClock
	Publisher Publisher // nil: events are dropped
	Logger    *slog.Logger

	// LowStockThreshold flags a material whose stock falls below it.
	// Zero means DefaultLowStockThreshold; negative disables the signal.
	LowStockThreshold int64
}

func (d Deps) withDefaults() Deps {
	if d.Locker == nil {
		d.Locker = lock.NewLocal()
	}
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.LowStockThreshold == 0 {
		d.LowStockThreshold = DefaultLowStockThreshold
	}
	return d
}

func (d Deps) isLow(stock int64) bool {
	return d.LowStockThreshold > 0 && stock < d.LowStockThreshold
}
