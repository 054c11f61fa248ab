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

	"github.com/caregrid/scheduling/internal/db"
)

// simulate drives concurrent booking traffic against a running api-server.
// Many workers request overlapping intervals on the same provider
// calendars and then race to confirm; conflicts are expected and counted
// separately from errors.
type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	ConfirmRatio float64
	CancelRatio  float64
	PostgresDSN  string
}

type Pool struct {
	Patients   []uuid.UUID
	Providers  []uuid.UUID
	Facilities map[uuid.UUID]uuid.UUID // provider -> facility with seeded slots
	SlotStarts map[uuid.UUID][]time.Time

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (p *Pool) AddAppointment(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.appointments = append(p.appointments, id)
}

func (p *Pool) RandomAppointment() (uuid.UUID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.appointments) == 0 {
		return uuid.Nil, false
	}
	return p.appointments[rand.Intn(len(p.appointments))], true
}

type OpMetrics struct {
	Total    int64
	Success  int64
	Conflict int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (m *OpMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&m.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&m.Success, 1)
	case status == http.StatusConflict || status == http.StatusServiceUnavailable:
		atomic.AddInt64(&m.Conflict, 1)
	default:
		atomic.AddInt64(&m.Error, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *OpMetrics) Stats() (avg, p50, p95 time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(m.latencies))
	copy(latencies, m.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, p50, p95
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_URL", "http://127.0.0.1:8080"),
		Duration:     getDurationEnv("SIM_DURATION", 30*time.Second),
		Workers:      getIntEnv("SIM_WORKERS", 16),
		ConfirmRatio: 0.4,
		CancelRatio:  0.1,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
	}
	if cfg.PostgresDSN == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required to load the data pool")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	pool, err := loadPool(context.Background(), pgPool)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().
		Int("patients", len(pool.Patients)).
		Int("providers", len(pool.Providers)).
		Msg("data pool loaded")

	requestMetrics := &OpMetrics{}
	confirmMetrics := &OpMetrics{}
	cancelMetrics := &OpMetrics{}

	runCtx, stop := context.WithTimeout(context.Background(), cfg.Duration)
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(runCtx, cfg, pool, requestMetrics, confirmMetrics, cancelMetrics)
		}()
	}
	wg.Wait()

	report("request", requestMetrics)
	report("confirm", confirmMetrics)
	report("cancel", cancelMetrics)
}

func worker(ctx context.Context, cfg SimConfig, pool *Pool, reqM, confM, cancM *OpMetrics) {
	client := &http.Client{Timeout: 10 * time.Second}

	for ctx.Err() == nil {
		roll := rand.Float64()
		if roll < cfg.ConfirmRatio {
			if id, ok := pool.RandomAppointment(); ok {
				status, latency := post(ctx, client, cfg.APIBaseURL+"/appointments/"+id.String()+"/confirm", nil)
				confM.Record(latency, status)
				continue
			}
		} else if roll < cfg.ConfirmRatio+cfg.CancelRatio {
			if id, ok := pool.RandomAppointment(); ok {
				status, latency := post(ctx, client, cfg.APIBaseURL+"/appointments/"+id.String()+"/cancel", nil)
				cancM.Record(latency, status)
				continue
			}
		}

		provider := pool.Providers[rand.Intn(len(pool.Providers))]
		starts := pool.SlotStarts[provider]
		if len(starts) == 0 {
			continue
		}
		start := starts[rand.Intn(len(starts))]

		body := map[string]any{
			"patient_id":  pool.Patients[rand.Intn(len(pool.Patients))].String(),
			"provider_id": provider.String(),
			"facility_id": pool.Facilities[provider].String(),
			"start":       start,
			"end":         start.Add(30 * time.Minute),
			"reason":      "simulated visit",
		}

		status, latency, respBody := postWithBody(ctx, client, cfg.APIBaseURL+"/appointments", body)
		reqM.Record(latency, status)

		if status == http.StatusCreated {
			var resp struct {
				ID uuid.UUID `json:"id"`
			}
			if err := json.Unmarshal(respBody, &resp); err == nil {
				pool.AddAppointment(resp.ID)
			}
		}
	}
}

func post(ctx context.Context, client *http.Client, url string, body map[string]any) (int, time.Duration) {
	status, latency, _ := postWithBody(ctx, client, url, body)
	return status, latency
}

func postWithBody(ctx context.Context, client *http.Client, url string, body map[string]any) (int, time.Duration, []byte) {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return 0, 0, nil
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, latency, respBody
}

func loadPool(ctx context.Context, pgPool *pgxpool.Pool) (*Pool, error) {
	pool := &Pool{
		Facilities: make(map[uuid.UUID]uuid.UUID),
		SlotStarts: make(map[uuid.UUID][]time.Time),
	}

	rows, err := pgPool.Query(ctx, `SELECT id FROM patients LIMIT 500`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		pool.Patients = append(pool.Patients, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slotRows, err := pgPool.Query(ctx, `
		SELECT provider_id, facility_id, start_time
		FROM slots
		WHERE status = 'FREE' AND start_time > now()
		ORDER BY start_time
		LIMIT 5000
	`)
	if err != nil {
		return nil, err
	}
	defer slotRows.Close()
	for slotRows.Next() {
		var providerID, facilityID uuid.UUID
		var start time.Time
		if err := slotRows.Scan(&providerID, &facilityID, &start); err != nil {
			return nil, err
		}
		if _, seen := pool.Facilities[providerID]; !seen {
			pool.Providers = append(pool.Providers, providerID)
			pool.Facilities[providerID] = facilityID
		}
		pool.SlotStarts[providerID] = append(pool.SlotStarts[providerID], start)
	}
	if err := slotRows.Err(); err != nil {
		return nil, err
	}

	if len(pool.Patients) == 0 || len(pool.Providers) == 0 {
		return nil, fmt.Errorf("empty data pool, run cmd/seed first")
	}
	return pool, nil
}

func report(name string, m *OpMetrics) {
	avg, p50, p95 := m.Stats()
	fmt.Printf("%s: total=%d success=%d conflict=%d error=%d avg=%s p50=%s p95=%s\n",
		name,
		atomic.LoadInt64(&m.Total),
		atomic.LoadInt64(&m.Success),
		atomic.LoadInt64(&m.Conflict),
		atomic.LoadInt64(&m.Error),
		avg, p50, p95,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
