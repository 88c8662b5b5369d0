package bot

import (
	"fmt"
	"strconv"
	"strings"

	"todo-bot/internal/service"
)

// Callback payloads are short colon-separated strings (Telegram caps them at
// 64 bytes). Every button press is decoded into exactly one action below.
const (
	prefixMainMenu       = "mm"
	prefixCancelAdd      = "ca"
	prefixFilter         = "tf"
	prefixCompleteMenu   = "tc"
	prefixComplete       = "ct"
	prefixEdit           = "ed"
	prefixDelete         = "dl"
	prefixEnableReminder = "er"
	prefixReminders      = "rm"
	prefixRemoveReminder = "rr"
	prefixDisableAll     = "da"
	prefixCalendar       = "cal"

	historyView = "history"
)

type action interface {
	data() string
}

type mainMenuAction struct{}

type cancelAddAction struct{}

// filterAction shows the task list for a filter, or completed tasks when history is set.
type filterAction struct {
	filter  service.TimeFilter
	history bool
}

type completeMenuAction struct {
	filter service.TimeFilter
}

// completeAction pages the completion keyboard; a non-zero number completes that task.
type completeAction struct {
	filter service.TimeFilter
	page   int
	number int
}

type selectFlow int

const (
	flowEdit selectFlow = iota
	flowDelete
)

type selectOp string

const (
	opView   selectOp = "v"
	opSelect selectOp = "s"
)

// selectAction drives the edit and delete selection keyboards.
type selectAction struct {
	flow   selectFlow
	page   int
	number int
	op     selectOp
}

type enableReminderAction struct {
	taskID uint
}

type remindersAction struct {
	page int
}

type removeReminderAction struct {
	taskID uint
	page   int
}

type disableAllAction struct{}

type calendarOp string

const (
	calIgnore calendarOp = "i"
	calDay    calendarOp = "d"
	calPrev   calendarOp = "p"
	calNext   calendarOp = "n"
	calNone   calendarOp = "x"
	calCancel calendarOp = "c"
)

type calendarAction struct {
	op    calendarOp
	year  int
	month int
	day   int
}

func (mainMenuAction) data() string  { return prefixMainMenu }
func (cancelAddAction) data() string { return prefixCancelAdd }

func (a filterAction) data() string {
	if a.history {
		return prefixFilter + ":" + historyView
	}
	return prefixFilter + ":" + string(a.filter)
}

func (a completeMenuAction) data() string {
	return prefixCompleteMenu + ":" + string(a.filter)
}

func (a completeAction) data() string {
	return fmt.Sprintf("%s:%s:%d:%d", prefixComplete, a.filter, a.page, a.number)
}

func (a selectAction) data() string {
	prefix := prefixEdit
	if a.flow == flowDelete {
		prefix = prefixDelete
	}
	return fmt.Sprintf("%s:%d:%d:%s", prefix, a.page, a.number, a.op)
}

func (a enableReminderAction) data() string {
	return fmt.Sprintf("%s:%d", prefixEnableReminder, a.taskID)
}

func (a remindersAction) data() string {
	return fmt.Sprintf("%s:%d", prefixReminders, a.page)
}

func (a removeReminderAction) data() string {
	return fmt.Sprintf("%s:%d:%d", prefixRemoveReminder, a.taskID, a.page)
}

func (disableAllAction) data() string { return prefixDisableAll }

func (a calendarAction) data() string {
	return fmt.Sprintf("%s:%s:%d:%d:%d", prefixCalendar, a.op, a.year, a.month, a.day)
}

// decodeAction parses callback data into a typed action.
func decodeAction(raw string) (action, error) {
	parts := strings.Split(raw, ":")
	args := parts[1:]

	switch parts[0] {
	case prefixMainMenu:
		return mainMenuAction{}, expectArgs(raw, args, 0)
	case prefixCancelAdd:
		return cancelAddAction{}, expectArgs(raw, args, 0)
	case prefixDisableAll:
		return disableAllAction{}, expectArgs(raw, args, 0)
	case prefixFilter:
		if err := expectArgs(raw, args, 1); err != nil {
			return nil, err
		}
		if args[0] == historyView {
			return filterAction{filter: service.FilterAll, history: true}, nil
		}
		return filterAction{filter: service.ParseTimeFilter(args[0])}, nil
	case prefixCompleteMenu:
		if err := expectArgs(raw, args, 1); err != nil {
			return nil, err
		}
		return completeMenuAction{filter: service.ParseTimeFilter(args[0])}, nil
	case prefixComplete:
		if err := expectArgs(raw, args, 3); err != nil {
			return nil, err
		}
		nums, err := atoiAll(raw, args[1:])
		if err != nil {
			return nil, err
		}
		return completeAction{filter: service.ParseTimeFilter(args[0]), page: nums[0], number: nums[1]}, nil
	case prefixEdit, prefixDelete:
		if err := expectArgs(raw, args, 3); err != nil {
			return nil, err
		}
		nums, err := atoiAll(raw, args[:2])
		if err != nil {
			return nil, err
		}
		op := selectOp(args[2])
		if op != opView && op != opSelect {
			return nil, fmt.Errorf("callback %q: unknown op %q", raw, args[2])
		}
		flow := flowEdit
		if parts[0] == prefixDelete {
			flow = flowDelete
		}
		return selectAction{flow: flow, page: nums[0], number: nums[1], op: op}, nil
	case prefixEnableReminder:
		if err := expectArgs(raw, args, 1); err != nil {
			return nil, err
		}
		nums, err := atoiAll(raw, args)
		if err != nil {
			return nil, err
		}
		return enableReminderAction{taskID: uint(nums[0])}, nil
	case prefixReminders:
		if err := expectArgs(raw, args, 1); err != nil {
			return nil, err
		}
		nums, err := atoiAll(raw, args)
		if err != nil {
			return nil, err
		}
		return remindersAction{page: nums[0]}, nil
	case prefixRemoveReminder:
		if err := expectArgs(raw, args, 2); err != nil {
			return nil, err
		}
		nums, err := atoiAll(raw, args)
		if err != nil {
			return nil, err
		}
		return removeReminderAction{taskID: uint(nums[0]), page: nums[1]}, nil
	case prefixCalendar:
		if err := expectArgs(raw, args, 4); err != nil {
			return nil, err
		}
		nums, err := atoiAll(raw, args[1:])
		if err != nil {
			return nil, err
		}
		op := calendarOp(args[0])
		switch op {
		case calIgnore, calDay, calPrev, calNext, calNone, calCancel:
		default:
			return nil, fmt.Errorf("callback %q: unknown calendar op %q", raw, args[0])
		}
		return calendarAction{op: op, year: nums[0], month: nums[1], day: nums[2]}, nil
	default:
		return nil, fmt.Errorf("callback %q: unknown prefix", raw)
	}
}

func expectArgs(raw string, args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("callback %q: want %d fields, got %d", raw, n, len(args))
	}
	return nil
}

// atoiAll parses non-negative integers.
func atoiAll(raw string, fields []string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("callback %q: bad number %q", raw, f)
		}
		out[i] = n
	}
	return out, nil
}
