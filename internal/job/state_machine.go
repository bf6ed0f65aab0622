package job

import "fmt"

var allowedTransitions = map[Status]map[Status]struct{}{
	StatusPending: {
		StatusRunning: {},
	},
	StatusRunning: {
		StatusPaused:    {},
		StatusCompleted: {},
		StatusFailed:    {},
		StatusCancelled: {},
	},
	StatusPaused: {
		StatusRunning:   {},
		StatusCancelled: {},
	},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// ValidateStatus returns an error for statuses outside the lifecycle.
func ValidateStatus(s Status) error {
	if _, ok := allowedTransitions[s]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return nil
}

// ValidateTransition checks that to is directly reachable from from.
func ValidateTransition(from, to Status) error {
	if err := ValidateStatus(from); err != nil {
		return err
	}
	if err := ValidateStatus(to); err != nil {
		return err
	}
	if _, ok := allowedTransitions[from][to]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, to)
	}
	return nil
}

// Path returns the shortest sequence of statuses leading from from to to,
// excluding from and including to. An empty path means from == to.
// ok is false when to cannot be reached at all.
func Path(from, to Status) (path []Status, ok bool) {
	if ValidateStatus(from) != nil || ValidateStatus(to) != nil {
		return nil, false
	}
	if from == to {
		return []Status{}, true
	}

	prev := map[Status]Status{from: ""}
	queue := []Status{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		// iterate in a fixed order so the chosen path is stable
		for _, next := range lifecycleOrder {
			if _, edge := allowedTransitions[cur][next]; !edge {
				continue
			}
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			if next == to {
				return unwind(prev, from, to), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

func unwind(prev map[Status]Status, from, to Status) []Status {
	var rev []Status
	for s := to; s != from; s = prev[s] {
		rev = append(rev, s)
	}
	path := make([]Status, len(rev))
	for i, s := range rev {
		path[len(rev)-1-i] = s
	}
	return path
}

var lifecycleOrder = []Status{
	StatusPending,
	StatusRunning,
	StatusPaused,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}
