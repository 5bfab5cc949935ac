package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rawblock/itemset-engine/internal/fim"
	"github.com/rawblock/itemset-engine/internal/shadow"
	"github.com/rawblock/itemset-engine/pkg/models"
)

// maxScanBlocks caps the block range of a single scan job to prevent
// runaway resource exhaustion from unconstrained requests.
const maxScanBlocks int64 = 50_000

func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "itemset-engine",
		"db":      h.dbStore != nil,
		"rpc":     h.btcClient != nil,
	})
}

// handleMine runs one synchronous mining request.
func (h *APIHandler) handleMine(c *gin.Context) {
	var req models.MiningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start := time.Now()
	res, stats, err := runMining(&req, nil)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, fim.ErrAborted) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	h.persistRun(stats, time.Since(start))
	c.JSON(http.StatusOK, res)
}

func (h *APIHandler) persistRun(stats *runStats, dur time.Duration) {
	if h.dbStore == nil || stats == nil {
		return
	}
	run := models.MiningRun{
		RunID:        uuid.NewString(),
		Engine:       stats.Engine,
		Target:       stats.Target,
		Supp:         stats.Supp,
		TractCount:   stats.TractCount,
		TotalWeight:  stats.TotalWeight,
		PatternCount: stats.PatternCount,
		Duration:     dur,
		CreatedAt:    time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.dbStore.SaveMiningRun(ctx, run); err != nil {
		log.Printf("[API] Warning: failed to persist run record: %v", err)
	}
}

// handleGenSpectrum generates a pattern spectrum from surrogate data.
func (h *APIHandler) handleGenSpectrum(c *gin.Context) {
	var req models.SpectrumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bag, _, err := buildBag(req.Tracts, req.Weights, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target, err := fim.ParseTarget(req.Target, "ascmg")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	surr := fim.SurrSwap
	if req.Surr != "" {
		if surr, err = fim.ParseSurrogate(req.Surr); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	cfg := fim.GenPspConfig{
		Target: target,
		Supp:   10,
		ZMin:   1,
		ZMax:   -1,
		Cnt:    1000,
		Surr:   surr,
		Seed:   req.Seed,
		CPUs:   req.CPUs,
	}
	if req.Supp != nil {
		cfg.Supp = *req.Supp
	}
	if req.ZMin != nil {
		cfg.ZMin = *req.ZMin
	}
	if req.ZMax != nil {
		cfg.ZMax = *req.ZMax
	}
	if req.Cnt > 0 {
		cfg.Cnt = req.Cnt
	}
	if cfg.Surr == fim.SurrIdentity {
		cfg.Cnt = 1 // a deterministic surrogate needs a single run
	}
	psp, err := fim.GenPsp(bag, cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entries := spectrumEntries(psp, 1.0/float64(cfg.Cnt))
	if h.dbStore != nil {
		runID := uuid.NewString()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.dbStore.SaveSpectrum(ctx, runID, entries); err != nil {
			log.Printf("[API] Warning: failed to persist spectrum: %v", err)
		} else {
			c.Header("X-Run-ID", runID)
		}
	}
	c.JSON(http.StatusOK, spectrumResult(entries))
}

// handleEstSpectrum estimates a pattern spectrum analytically.
func (h *APIHandler) handleEstSpectrum(c *gin.Context) {
	var req models.SpectrumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bag, _, err := buildBag(req.Tracts, req.Weights, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target, err := fim.ParseTarget(req.Target, "as")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg := fim.EstPspConfig{
		Target: target,
		Supp:   10,
		ZMin:   1,
		ZMax:   -1,
		Equiv:  10000,
		Alpha:  0.5,
		Smpls:  1000,
		Seed:   req.Seed,
	}
	if req.Supp != nil {
		cfg.Supp = *req.Supp
	}
	if req.ZMin != nil {
		cfg.ZMin = *req.ZMin
	}
	if req.ZMax != nil {
		cfg.ZMax = *req.ZMax
	}
	if req.Equiv > 0 {
		cfg.Equiv = req.Equiv
	}
	if req.Alpha > 0 {
		cfg.Alpha = req.Alpha
	}
	if req.Smpls > 0 {
		cfg.Smpls = req.Smpls
	}
	// the estimator works on the recoded frequency distribution
	smin := (&fim.Options{Supp: cfg.Supp}).AbsSupp(bag.Wgt())
	bag.Recode(smin, -1, -1, -2)
	bag.Filter(cfg.ZMin)
	psp := fim.EstPsp(bag, cfg)
	c.JSON(http.StatusOK, spectrumResult(spectrumEntries(psp, 1.0/float64(cfg.Equiv))))
}

func spectrumEntries(psp *fim.PatSpec, scale float64) []models.SpectrumEntry {
	raw := psp.Entries(scale)
	out := make([]models.SpectrumEntry, len(raw))
	for i, e := range raw {
		out[i] = models.SpectrumEntry{Size: e.Size, Supp: e.Supp, Frq: e.Frq}
	}
	return out
}

func spectrumResult(entries []models.SpectrumEntry) models.SpectrumResult {
	res := models.SpectrumResult{Entries: entries}
	res.Sizes = make([]int, len(entries))
	res.Supps = make([]int, len(entries))
	res.Freqs = make([]float64, len(entries))
	for i, e := range entries {
		res.Sizes[i] = e.Size
		res.Supps[i] = e.Supp
		res.Freqs[i] = e.Frq
	}
	return res
}

// handleReduce applies pattern set reduction to already-mined
// patterns.
func (h *APIHandler) handleReduce(c *gin.Context) {
	var req models.ReduceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Patterns) == 0 {
		c.JSON(http.StatusOK, models.ReduceResult{Patterns: []models.InputPattern{}})
		return
	}
	method := fim.RedCover1
	if req.Method != "" {
		var err error
		if method, err = fim.ParseRedMethod(req.Method); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	addis := true
	if req.AddIsect != nil {
		addis = *req.AddIsect
	}
	var first any
	for _, p := range req.Patterns {
		if len(p.Items) > 0 {
			first = p.Items[0]
			break
		}
	}
	if first == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "all patterns are empty"})
		return
	}
	adder, err := newItemAdder(first)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ps := fim.NewPatternSet(decodeBorder(req.Border))
	for i, p := range req.Patterns {
		ids := make([]int, 0, len(p.Items))
		for _, obj := range p.Items {
			id, err := adder.addObj(obj)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ids = append(ids, id)
		}
		sortInts(ids)
		ps.Add(ids, p.Supp, i)
	}
	kept := ps.Reduce(method, addis)
	res := models.ReduceResult{Removed: len(req.Patterns) - len(kept)}
	for _, p := range kept {
		if p.Orig >= 0 {
			res.Patterns = append(res.Patterns, req.Patterns[p.Orig])
			continue
		}
		// synthesized intersection pattern
		items := make([]any, len(p.Items))
		for i, id := range p.Items {
			items[i] = adder.name(id)
		}
		res.Patterns = append(res.Patterns, models.InputPattern{Items: items, Supp: p.Supp})
	}
	c.JSON(http.StatusOK, res)
}

func sortInts(a []int) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j] < a[j-1]; j-- {
			a[j], a[j-1] = a[j-1], a[j]
		}
	}
}

// handleShadowCompare mines the same input with two engines and
// reports the relation diff.
func (h *APIHandler) handleShadowCompare(c *gin.Context) {
	var req struct {
		models.MiningRequest
		ShadowEngine string `json:"shadowEngine"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	opts, engine, err := decodeOptions(&req.MiningRequest)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bag, _, err := buildBag(req.Tracts, req.Weights, req.Appear)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	shadowEngine := req.ShadowEngine
	if shadowEngine == "" {
		shadowEngine = "eclat"
	}
	res, err := shadow.NewRunner(engine, shadowEngine).Compare(bag, opts)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleCreateJob enqueues an asynchronous mining job.
func (h *APIHandler) handleCreateJob(c *gin.Context) {
	if h.jobRunner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job runner not available"})
		return
	}
	var req models.MiningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job := h.jobRunner.Submit(req)
	c.JSON(http.StatusAccepted, job)
}

func (h *APIHandler) handleGetJob(c *gin.Context) {
	if h.jobRunner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job runner not available"})
		return
	}
	job, ok := h.jobRunner.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job id"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *APIHandler) handleAbortJob(c *gin.Context) {
	if h.jobRunner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job runner not available"})
		return
	}
	if !h.jobRunner.Abort(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job id"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "abort requested"})
}

func (h *APIHandler) handleRecentRuns(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not available"})
		return
	}
	runs, err := h.dbStore.RecentRuns(c.Request.Context(), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, runs)
}

func (h *APIHandler) handleRunSpectrum(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not available"})
		return
	}
	entries, err := h.dbStore.LoadSpectrum(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, spectrumResult(entries))
}

// handleStartScan kicks off the historical block co-spend scanner.
func (h *APIHandler) handleStartScan(c *gin.Context) {
	if h.blockScanner == nil || h.btcClient == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bitcoin RPC not available"})
		return
	}
	var req models.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.EndHeight < req.StartHeight {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endHeight must be >= startHeight"})
		return
	}
	if req.EndHeight-req.StartHeight+1 > maxScanBlocks {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "block range too large",
			"max":   maxScanBlocks,
		})
		return
	}
	// the scan outlives the HTTP request; it is cancelled only on
	// process shutdown
	h.blockScanner.ScanRange(context.Background(), req)
	c.JSON(http.StatusAccepted, gin.H{"status": "scan started"})
}

func (h *APIHandler) handleScanProgress(c *gin.Context) {
	if h.blockScanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scanner not available"})
		return
	}
	c.JSON(http.StatusOK, h.blockScanner.GetProgress())
}

// ExecJob adapts runMining to the job runner contract.
func ExecJob(req *models.MiningRequest, abort *atomic.Bool) (*models.MiningResult, error) {
	res, _, err := runMining(req, abort)
	return res, err
}

// BroadcastCoSpendAlert returns the scanner callback that feeds the
// WebSocket hub.
func BroadcastCoSpendAlert(hub *Hub) func(models.CoSpendAlert) {
	return func(alert models.CoSpendAlert) {
		payload, err := json.Marshal(map[string]any{
			"type":  "cospend_alert",
			"alert": alert,
		})
		if err != nil {
			log.Printf("[API] Failed to marshal co-spend alert: %v", err)
			return
		}
		hub.Broadcast(payload)
	}
}
