package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/medagenda/clinic-scheduling/internal/config"
	"github.com/medagenda/clinic-scheduling/internal/db"
)

// The simulator hammers the API with concurrent bookings, drag-moves and
// availability queries to observe conflict rates and latency under
// contention. Two movers targeting the same slot must produce exactly one
// success; the conflict counters make that visible at scale.

var log = zerolog.New(os.Stderr).With().Timestamp().Str("service", "simulate").Logger()

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookRatio    float64
	MoveRatio    float64
	AvailRatio   float64
	PatientLimit int
	PostgresDSN  string
}

func loadSimConfig(cfg config.Config) SimConfig {
	sim := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://127.0.0.1:8080"),
		Duration:     getDurationEnv("SIM_DURATION", time.Minute),
		Workers:      getIntEnv("SIM_WORKERS", 16),
		BookRatio:    getFloatEnv("SIM_BOOK_RATIO", 0.4),
		MoveRatio:    getFloatEnv("SIM_MOVE_RATIO", 0.3),
		AvailRatio:   getFloatEnv("SIM_AVAIL_RATIO", 0.3),
		PatientLimit: getIntEnv("SIM_PATIENT_LIMIT", 500),
		PostgresDSN:  cfg.PostgresDSN,
	}
	return sim
}

type DataPool struct {
	Professionals []uuid.UUID
	Patients      []uuid.UUID

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment() (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rand.Intn(len(dp.appointments))], true
}

func (dp *DataPool) RandomProfessional() uuid.UUID {
	return dp.Professionals[rand.Intn(len(dp.Professionals))]
}

func (dp *DataPool) RandomPatient() uuid.UUID {
	return dp.Patients[rand.Intn(len(dp.Patients))]
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Percentiles() (p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0
	}
	sorted := make([]time.Duration, len(om.latencies))
	copy(sorted, om.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := func(pct int) int {
		i := len(sorted) * pct / 100
		if i >= len(sorted) {
			i = len(sorted) - 1
		}
		return i
	}
	return sorted[idx(50)], sorted[idx(95)]
}

type Metrics struct {
	Book         OperationMetrics
	Move         OperationMetrics
	Availability OperationMetrics
}

type Simulator struct {
	cfg     SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.Info().Msg("simulator starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	sim := loadSimConfig(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pgPool, err := db.ConnectPostgres(ctx, sim.PostgresDSN, 5, 1)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	pool, err := loadDataPool(context.Background(), pgPool, sim.PatientLimit)
	if err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}
	log.Info().
		Int("professionals", len(pool.Professionals)).
		Int("patients", len(pool.Patients)).
		Msg("data pool loaded")

	s := &Simulator{
		cfg:    sim,
		pool:   pool,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	s.run()
	s.report()
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, patientLimit int) (*DataPool, error) {
	dp := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM professionals`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dp.Professionals = append(dp.Professionals, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pRows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, patientLimit)
	if err != nil {
		return nil, err
	}
	defer pRows.Close()
	for pRows.Next() {
		var id uuid.UUID
		if err := pRows.Scan(&id); err != nil {
			return nil, err
		}
		dp.Patients = append(dp.Patients, id)
	}
	if err := pRows.Err(); err != nil {
		return nil, err
	}

	if len(dp.Professionals) == 0 || len(dp.Patients) == 0 {
		return nil, fmt.Errorf("empty data pool, run cmd/seed first")
	}
	return dp, nil
}

func (s *Simulator) run() {
	log.Info().
		Int("workers", s.cfg.Workers).
		Dur("duration", s.cfg.Duration).
		Msg("simulation running")

	deadline := time.Now().Add(s.cfg.Duration)
	var wg sync.WaitGroup
	for w := 0; w < s.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				s.step()
			}
		}()
	}
	wg.Wait()
}

func (s *Simulator) step() {
	r := rand.Float64()
	switch {
	case r < s.cfg.BookRatio:
		s.doBook()
	case r < s.cfg.BookRatio+s.cfg.MoveRatio:
		s.doMove()
	default:
		s.doAvailability()
	}
}

// randomSlotStart picks an aligned morning slot within the next 7 weekdays.
func randomSlotStart() time.Time {
	day := time.Now().AddDate(0, 0, 1+rand.Intn(7))
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	minute := 9*60 + 15*rand.Intn(15) // between 09:00 and 12:30
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.Local).
		Add(time.Duration(minute) * time.Minute)
}

func (s *Simulator) doBook() {
	body := map[string]any{
		"patient_id":       s.pool.RandomPatient().String(),
		"professional_id":  s.pool.RandomProfessional().String(),
		"start":            randomSlotStart().Format(time.RFC3339),
		"duration_minutes": 30,
	}

	start := time.Now()
	status, respBody := s.post("/appointments", body)
	latency := time.Since(start)

	success := status == http.StatusCreated
	conflict := status == http.StatusConflict
	s.metrics.Book.Record(latency, success, conflict)

	if success {
		var resp struct {
			ID uuid.UUID `json:"id"`
		}
		if err := json.Unmarshal(respBody, &resp); err == nil && resp.ID != uuid.Nil {
			s.pool.AddAppointment(resp.ID)
		}
	}
}

func (s *Simulator) doMove() {
	id, ok := s.pool.RandomAppointment()
	if !ok {
		s.doBook()
		return
	}

	body := map[string]any{
		"new_start": randomSlotStart().Format(time.RFC3339),
	}

	start := time.Now()
	status, _ := s.put("/appointments/"+id.String()+"/move", body)
	latency := time.Since(start)

	s.metrics.Move.Record(latency, status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doAvailability() {
	prof := s.pool.RandomProfessional()
	rangeStart := time.Now().AddDate(0, 0, 1)
	rangeEnd := rangeStart.AddDate(0, 0, 7)

	url := fmt.Sprintf("%s/availability?professional_id=%s&range_start=%s&range_end=%s&duration=30",
		s.cfg.APIBaseURL, prof,
		rangeStart.Format(time.RFC3339), rangeEnd.Format(time.RFC3339))

	start := time.Now()
	resp, err := s.client.Get(url)
	latency := time.Since(start)
	if err != nil {
		s.metrics.Availability.Record(latency, false, false)
		return
	}
	defer drainAndClose(resp)

	s.metrics.Availability.Record(latency, resp.StatusCode == http.StatusOK, false)
}

func (s *Simulator) post(path string, body map[string]any) (int, []byte) {
	return s.send(http.MethodPost, path, body)
}

func (s *Simulator) put(path string, body map[string]any) (int, []byte) {
	return s.send(http.MethodPut, path, body)
}

func (s *Simulator) send(method, path string, body map[string]any) (int, []byte) {
	b, err := json.Marshal(body)
	if err != nil {
		return 0, nil
	}
	req, err := http.NewRequest(method, s.cfg.APIBaseURL+path, bytes.NewReader(b))
	if err != nil {
		return 0, nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor", "simulator")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, respBody
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}

func (s *Simulator) report() {
	ops := []struct {
		name string
		m    *OperationMetrics
	}{
		{"book", &s.metrics.Book},
		{"move", &s.metrics.Move},
		{"availability", &s.metrics.Availability},
	}

	for _, op := range ops {
		p50, p95 := op.m.Percentiles()
		log.Info().
			Str("op", op.name).
			Int64("total", atomic.LoadInt64(&op.m.Total)).
			Int64("success", atomic.LoadInt64(&op.m.Success)).
			Int64("conflict", atomic.LoadInt64(&op.m.Conflict)).
			Int64("error", atomic.LoadInt64(&op.m.Error)).
			Dur("p50", p50).
			Dur("p95", p95).
			Msg("simulation results")
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
