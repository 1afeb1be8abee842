package schedule

import (
	"container/list"
	"time"

	"jsbridge/logger"
)

const (
	interval = time.Second
	slotNums = 3600
)

type location struct {
	slotIndex int
	elem      *list.Element
}

// timeWheel owns its slots from a single goroutine; every mutation goes through a channel.
type timeWheel struct {
	ticker         *time.Ticker
	interval       time.Duration
	slotNum        int
	currentPos     int
	slots          []*list.List
	locationMap    map[string]*location
	addTaskChan    chan *task
	removeTaskChan chan string
	stopChannel    chan struct{}
	done           chan struct{}
	running        bool
}

type task struct {
	delay  time.Duration
	circle int
	job    func()
	key    string
}

func makeTimeWheel(tick time.Duration, slots int) *timeWheel {
	t := &timeWheel{
		interval:       tick,
		slotNum:        slots,
		slots:          make([]*list.List, slots),
		locationMap:    make(map[string]*location),
		addTaskChan:    make(chan *task),
		removeTaskChan: make(chan string),
		stopChannel:    make(chan struct{}),
		done:           make(chan struct{}),
	}
	for i := 0; i < slots; i++ {
		t.slots[i] = list.New()
	}
	return t
}

func (t *timeWheel) start() {
	if t.running {
		return
	}
	t.running = true
	t.ticker = time.NewTicker(t.interval)
	go t.handleEvent()
}

func (t *timeWheel) stop() {
	if !t.running {
		return
	}
	t.running = false
	close(t.stopChannel)
	<-t.done
}

func (t *timeWheel) removeJob(key string) {
	select {
	case t.removeTaskChan <- key:
	case <-t.done:
	}
}

// addJob schedules job to run once after delay. A job with the same key is replaced.
func (t *timeWheel) addJob(delay time.Duration, key string, job func()) {
	if delay < 0 {
		delay = 0
	}
	select {
	case t.addTaskChan <- &task{delay: delay, key: key, job: job}:
	case <-t.done:
	}
}

// getPositionAndCircle returns the slot scanned on the tick that first reaches d, and how many
// full turns of the wheel have to pass before that.
func (t *timeWheel) getPositionAndCircle(d time.Duration) (pos int, circle int) {
	ticks := int((d + t.interval - 1) / t.interval)
	if ticks < 1 {
		ticks = 1
	}
	circle = (ticks - 1) / t.slotNum
	pos = (t.currentPos + ticks - 1) % t.slotNum
	return
}

func (t *timeWheel) handleAddTask(tk *task) {
	if tk.key != "" {
		t.handleRemove(tk.key)
	}
	pos, circle := t.getPositionAndCircle(tk.delay)
	tk.circle = circle
	e := t.slots[pos].PushBack(tk)
	if tk.key != "" {
		t.locationMap[tk.key] = &location{slotIndex: pos, elem: e}
	}
}

func (t *timeWheel) handleRemove(key string) {
	if loc, ok := t.locationMap[key]; ok {
		t.slots[loc.slotIndex].Remove(loc.elem)
		delete(t.locationMap, key)
	}
}

func (t *timeWheel) handleEvent() {
	defer close(t.done)
	for {
		select {
		case <-t.ticker.C:
			t.tickHandler()
		case tk := <-t.addTaskChan:
			t.handleAddTask(tk)
		case key := <-t.removeTaskChan:
			t.handleRemove(key)
		case <-t.stopChannel:
			t.ticker.Stop()
			return
		}
	}
}

func (t *timeWheel) tickHandler() {
	l := t.slots[t.currentPos]
	t.currentPos = (t.currentPos + 1) % t.slotNum
	t.scanAndRunTask(l)
}

func (t *timeWheel) scanAndRunTask(l *list.List) {
	for elem := l.Front(); elem != nil; {
		tk := elem.Value.(*task)
		if tk.circle > 0 {
			tk.circle--
			elem = elem.Next()
			continue
		}
		go run(tk)
		next := elem.Next()
		l.Remove(elem)
		if tk.key != "" {
			delete(t.locationMap, tk.key)
		}
		elem = next
	}
}

func run(tk *task) {
	defer func() {
		if err := recover(); err != nil {
			logger.Error("job panicked", "job", tk.key, "err", err)
		}
	}()
	tk.job()
}
