package scheduler

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"ledsignal-agent/internal/core"

	"github.com/robfig/cron/v3"
)

// ScheduleEntry defines the structure for a saved schedule.
type ScheduleEntry struct {
	Spec    string `json:"spec"`
	Command string `json:"command"`
}

// Scheduler fires timed commands into the agent's command channel. It lets
// a unit run a daily operating pattern (steady in the morning, shutdown at
// night) without the controller having to send anything.
type Scheduler struct {
	cron           *cron.Cron
	store          map[cron.EntryID]ScheduleEntry
	commandChannel core.CommandChannel
	mu             sync.RWMutex
	schedulesFile  string
}

// NewScheduler creates and loads a scheduler.
func NewScheduler(cmdChan core.CommandChannel, schedulesFile string) *Scheduler {
	s := &Scheduler{
		cron:           cron.New(),
		store:          make(map[cron.EntryID]ScheduleEntry),
		commandChannel: cmdChan,
		schedulesFile:  schedulesFile,
	}
	s.load()
	return s
}

// Start begins the cron job ticker.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("[Scheduler] cron scheduler started")
}

// Stop halts the cron job ticker.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[Scheduler] cron scheduler stopped")
}

// Add creates a new cron job and persists it.
func (s *Scheduler) Add(spec, command string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() { s.execute(command) })
	if err != nil {
		log.Printf("[Scheduler] error adding schedule '%s' '%s': %v", spec, command, err)
		return
	}
	s.store[id] = ScheduleEntry{Spec: spec, Command: command}
	s.save()
	log.Printf("[Scheduler] added schedule (ID %d): %s -> %s", id, spec, command)
}

// Remove deletes a cron job.
func (s *Scheduler) Remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID := cron.EntryID(id)
	s.cron.Remove(entryID)
	delete(s.store, entryID)
	s.save()
	log.Printf("[Scheduler] removed schedule (ID %d)", id)
}

// GetAll returns a copy of the current schedules in a thread-safe way.
func (s *Scheduler) GetAll() map[cron.EntryID]ScheduleEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	newMap := make(map[cron.EntryID]ScheduleEntry)
	for k, v := range s.store {
		newMap[k] = v
	}
	return newMap
}

// execute parses a schedule command string and enqueues the matching agent
// command. Scheduled commands carry no peer, so they get no wire reply.
func (s *Scheduler) execute(command string) {
	log.Printf("[Scheduler] executing scheduled command: %s", command)
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return
	}
	switch parts[0] {
	case "mode":
		if len(parts) != 2 {
			log.Printf("[Scheduler] bad mode schedule: %s", command)
			return
		}
		mode, ok := core.ModeByName(parts[1])
		if !ok {
			log.Printf("[Scheduler] unknown mode in schedule: %s", parts[1])
			return
		}
		s.commandChannel <- core.Command{Type: core.CmdSetMode, Mode: mode}

	case "flicker":
		if len(parts) != 4 {
			log.Printf("[Scheduler] bad flicker schedule: %s", command)
			return
		}
		durationMs, err1 := strconv.Atoi(parts[1])
		minLevel, err2 := strconv.Atoi(parts[2])
		maxLevel, err3 := strconv.Atoi(parts[3])
		if err1 != nil || err2 != nil || err3 != nil {
			log.Printf("[Scheduler] bad flicker schedule: %s", command)
			return
		}
		s.commandChannel <- core.Command{
			Type:     core.CmdFlicker,
			Duration: time.Duration(durationMs) * time.Millisecond,
			MinLevel: minLevel,
			MaxLevel: maxLevel,
		}

	case "shutdown":
		s.commandChannel <- core.Command{Type: core.CmdShutdown}

	default:
		log.Printf("[Scheduler] unknown schedule command: %s", command)
	}
}

func (s *Scheduler) save() {
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		log.Printf("[Scheduler] error marshalling schedules: %v", err)
		return
	}
	os.WriteFile(s.schedulesFile, data, 0644)
}

func (s *Scheduler) load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.schedulesFile); os.IsNotExist(err) {
		return
	}
	data, err := os.ReadFile(s.schedulesFile)
	if err != nil {
		log.Printf("[Scheduler] error reading schedule file: %v", err)
		return
	}

	tempStore := make(map[cron.EntryID]ScheduleEntry)
	if err := json.Unmarshal(data, &tempStore); err != nil {
		log.Printf("[Scheduler] error unmarshalling schedule file: %v", err)
		return
	}

	log.Printf("[Scheduler] loading %d schedules from file '%s'...", len(tempStore), s.schedulesFile)
	for _, entry := range tempStore {
		jobEntry := entry
		newID, err := s.cron.AddFunc(jobEntry.Spec, func() { s.execute(jobEntry.Command) })
		if err != nil {
			log.Printf("[Scheduler] error re-adding schedule from file: %v", err)
			continue
		}
		s.store[newID] = jobEntry
	}
}
