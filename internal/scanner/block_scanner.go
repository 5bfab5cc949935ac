package scanner

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rawblock/itemset-engine/internal/bitcoin"
	"github.com/rawblock/itemset-engine/internal/db"
	"github.com/rawblock/itemset-engine/internal/fim"
	"github.com/rawblock/itemset-engine/pkg/models"
)

// BlockScanner walks a confirmed block range, turns every transaction
// into the set of addresses it spends from, and mines the collected
// bag for address sets that keep co-occurring on the input side.
// Recurring co-spend sets are the strongest on-chain evidence of
// shared coin ownership across wallets.
type BlockScanner struct {
	btcClient *bitcoin.Client
	dbStore   *db.PostgresStore
	alertFunc func(alert models.CoSpendAlert) // optional broadcast callback

	// progress tracking (atomic for safe concurrent reads)
	currentHeight atomic.Int64
	totalTxs      atomic.Int64
	totalPatterns atomic.Int64
	isRunning     atomic.Bool
}

// ScanProgress is the scanner's current state for the API.
type ScanProgress struct {
	IsRunning     bool  `json:"isRunning"`
	CurrentHeight int64 `json:"currentHeight"`
	TotalTxs      int64 `json:"totalTxs"`
	TotalPatterns int64 `json:"totalPatterns"`
}

func NewBlockScanner(btcClient *bitcoin.Client, dbStore *db.PostgresStore, alertFunc func(models.CoSpendAlert)) *BlockScanner {
	return &BlockScanner{
		btcClient: btcClient,
		dbStore:   dbStore,
		alertFunc: alertFunc,
	}
}

// GetProgress returns the current scanning progress (thread-safe).
func (s *BlockScanner) GetProgress() ScanProgress {
	return ScanProgress{
		IsRunning:     s.isRunning.Load(),
		CurrentHeight: s.currentHeight.Load(),
		TotalTxs:      s.totalTxs.Load(),
		TotalPatterns: s.totalPatterns.Load(),
	}
}

// ScanRange collects the block range asynchronously and mines the
// co-spend bag at the end. Engine defaults to eclat; supp is the
// usual percent/absolute convention, zmin the minimum address set
// size worth reporting.
func (s *BlockScanner) ScanRange(ctx context.Context, req models.ScanRequest) {
	if s.isRunning.Load() {
		log.Println("[BlockScanner] Scan already in progress, ignoring duplicate request")
		return
	}
	s.isRunning.Store(true)
	s.totalTxs.Store(0)
	s.totalPatterns.Store(0)

	go func() {
		defer s.isRunning.Store(false)
		start := time.Now()
		log.Printf("[BlockScanner] Starting co-spend scan: blocks %d → %d (%d blocks)",
			req.StartHeight, req.EndHeight, req.EndHeight-req.StartHeight+1)

		base := fim.NewStrBase()
		bag := fim.NewBag(base)
		for height := req.StartHeight; height <= req.EndHeight; height++ {
			select {
			case <-ctx.Done():
				log.Printf("[BlockScanner] Scan cancelled at block %d", height)
				return
			default:
			}
			s.currentHeight.Store(height)
			txs, err := s.btcClient.BlockInputAddresses(height)
			if err != nil {
				log.Printf("[BlockScanner] Error reading block %d: %v", height, err)
				continue
			}
			for _, addrs := range txs {
				base.Clear()
				for _, a := range addrs {
					base.Add2TAStr(a)
				}
				bag.Add(base.FinTA(1))
				s.totalTxs.Add(1)
			}
			if scanned := s.totalTxs.Load(); scanned > 0 && height%100 == 0 {
				log.Printf("[BlockScanner] Progress: block %d | %d txs collected", height, scanned)
			}
		}

		if err := s.mineBag(bag, req, start); err != nil {
			log.Printf("[BlockScanner] Mining failed: %v", err)
			return
		}
		log.Printf("[BlockScanner] Scan complete: %d transactions, %d co-spend patterns",
			s.totalTxs.Load(), s.totalPatterns.Load())
	}()
}

// mineBag runs the configured engine over the collected bag and
// forwards every multi-address pattern as an alert.
func (s *BlockScanner) mineBag(bag *fim.Bag, req models.ScanRequest, start time.Time) error {
	engine := req.Engine
	if engine == "" {
		engine = "eclat"
	}
	opts := fim.DefaultOptions()
	opts.Supp = -2 // co-spending twice is already linkage evidence
	if req.Supp != nil {
		opts.Supp = *req.Supp
	}
	opts.ZMin = 2
	if req.ZMin != nil {
		opts.ZMin = *req.ZMin
	}
	m, err := fim.NewMiner(engine, opts)
	if err != nil {
		return err
	}
	if err := m.Data(bag); err != nil {
		return err
	}
	base := bag.Base()
	m.Report(func(items []int, supp int, info []float64) {
		s.totalPatterns.Add(1)
		if s.alertFunc == nil {
			return
		}
		addrs := make([]string, len(items))
		for i, id := range items {
			addrs[i] = base.StrObj(id)
		}
		s.alertFunc(models.CoSpendAlert{
			Addresses:  addrs,
			Support:    supp,
			BlockStart: req.StartHeight,
			BlockEnd:   req.EndHeight,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		})
	}, nil)
	if err := m.Mine(); err != nil {
		return err
	}
	if s.dbStore != nil {
		run := models.MiningRun{
			RunID:        uuid.NewString(),
			Engine:       engine,
			Target:       "sets",
			Supp:         opts.Supp,
			TractCount:   bag.Cnt(),
			TotalWeight:  bag.Wgt(),
			PatternCount: m.Cnt(),
			Duration:     time.Since(start),
			CreatedAt:    time.Now(),
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.dbStore.SaveMiningRun(ctx, run); err != nil {
			log.Printf("[BlockScanner] Warning: failed to persist run: %v", err)
		}
	}
	return nil
}
