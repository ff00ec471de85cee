package services

import (
	"context"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/logger"
)

// DefaultMatchThreshold is the minimum fuzzy name score recorded as a
// potential sanction match.
const DefaultMatchThreshold = 85

// ScreeningCandidate pairs a sanctions list entry with its match score
// against the screened name.
type ScreeningCandidate struct {
	Entry data.SanctionEntry
	Score int
}

// SanctionImportResult summarizes a CSV bulk ingest.
type SanctionImportResult struct {
	Imported int
	Failed   int
	Errors   []string
}

type SanctionScreeningService struct {
	dbConnectionPool db.DBConnectionPool
	models           *data.Models
	matchThreshold   int
}

type SanctionScreeningServiceOptions struct {
	DBConnectionPool db.DBConnectionPool
	Models           *data.Models
	MatchThreshold   int
}

func (opts SanctionScreeningServiceOptions) validate() error {
	if opts.DBConnectionPool == nil {
		return fmt.Errorf("db connection pool is required")
	}
	if opts.Models == nil {
		return fmt.Errorf("models are required")
	}
	if opts.MatchThreshold < 0 || opts.MatchThreshold > 100 {
		return fmt.Errorf("match threshold %d out of range", opts.MatchThreshold)
	}
	return nil
}

func NewSanctionScreeningService(opts SanctionScreeningServiceOptions) (*SanctionScreeningService, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("validating sanction screening service options: %w", err)
	}

	matchThreshold := opts.MatchThreshold
	if matchThreshold == 0 {
		matchThreshold = DefaultMatchThreshold
	}

	return &SanctionScreeningService{
		dbConnectionPool: opts.DBConnectionPool,
		models:           opts.Models,
		matchThreshold:   matchThreshold,
	}, nil
}

// ScreenName fuzzy-matches a name against the whole sanctions list and
// returns the candidates at or above the match threshold, strongest first.
func (s *SanctionScreeningService) ScreenName(ctx context.Context, name string) ([]ScreeningCandidate, error) {
	entries, err := s.models.Sanctions.GetAllEntries(ctx, s.dbConnectionPool)
	if err != nil {
		return nil, fmt.Errorf("loading sanction entries: %w", err)
	}

	candidates := []ScreeningCandidate{}
	for _, entry := range entries {
		score := nameMatchScore(name, entry.FullName)
		if score >= s.matchThreshold {
			candidates = append(candidates, ScreeningCandidate{Entry: entry, Score: score})
		}
	}

	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].Score > candidates[j-1].Score; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}

	return candidates, nil
}

// ScreenCustomer screens a customer by exact identifier and by fuzzy name,
// persisting every hit as a POTENTIAL match. Identifier hits score 100.
func (s *SanctionScreeningService) ScreenCustomer(ctx context.Context, customerID string) ([]data.SanctionMatch, error) {
	customer, err := s.models.Customers.Get(ctx, s.dbConnectionPool, customerID)
	if err != nil {
		return nil, fmt.Errorf("getting customer %s: %w", customerID, err)
	}

	scoreByEntry := map[string]int{}
	if customer.NationalID != nil && *customer.NationalID != "" {
		exact, idErr := s.models.Sanctions.GetEntriesByIdentifier(ctx, s.dbConnectionPool, *customer.NationalID)
		if idErr != nil {
			return nil, fmt.Errorf("screening identifier of customer %s: %w", customerID, idErr)
		}
		for _, entry := range exact {
			scoreByEntry[entry.ID] = 100
		}
	}

	candidates, err := s.ScreenName(ctx, customer.FullName())
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		if scoreByEntry[candidate.Entry.ID] < candidate.Score {
			scoreByEntry[candidate.Entry.ID] = candidate.Score
		}
	}

	matches := []data.SanctionMatch{}
	for entryID, score := range scoreByEntry {
		match, insertErr := s.models.Sanctions.InsertMatch(ctx, s.dbConnectionPool, entryID, customer.ID, score)
		if insertErr != nil {
			return nil, fmt.Errorf("recording sanction match for customer %s: %w", customerID, insertErr)
		}
		matches = append(matches, *match)
	}

	if len(matches) > 0 {
		logger.Ctx(ctx).Warnf("customer %s matched %d sanction entries", customer.CustomerNumber, len(matches))
	}
	return matches, nil
}

// ScreenParties implements the compliance gate for outbound wires: any name
// scoring at or above the threshold blocks the transfer.
func (s *SanctionScreeningService) ScreenParties(ctx context.Context, names ...string) error {
	for _, name := range names {
		candidates, err := s.ScreenName(ctx, name)
		if err != nil {
			return err
		}
		if len(candidates) > 0 {
			top := candidates[0]
			return fmt.Errorf("party %q matched %s on list %s with score %d: %w",
				name, top.Entry.FullName, top.Entry.ListName, top.Score, ErrComplianceBlocked)
		}
	}
	return nil
}

var _ ComplianceGate = (*SanctionScreeningService)(nil)

// ConfirmMatch marks a potential match as a true hit.
func (s *SanctionScreeningService) ConfirmMatch(ctx context.Context, matchID string) (*data.SanctionMatch, error) {
	return s.resolveMatch(ctx, matchID, data.ConfirmedSanctionMatchStatus)
}

// DismissMatch marks a potential match as a false positive.
func (s *SanctionScreeningService) DismissMatch(ctx context.Context, matchID string) (*data.SanctionMatch, error) {
	return s.resolveMatch(ctx, matchID, data.FalsePositiveSanctionMatchStatus)
}

func (s *SanctionScreeningService) resolveMatch(ctx context.Context, matchID string, target data.SanctionMatchStatus) (*data.SanctionMatch, error) {
	match, err := s.models.Sanctions.GetMatch(ctx, s.dbConnectionPool, matchID)
	if err != nil {
		return nil, fmt.Errorf("getting sanction match %s: %w", matchID, err)
	}
	return s.models.Sanctions.UpdateMatchStatus(ctx, s.dbConnectionPool, matchID, match.Status, target)
}

// ImportEntriesCSV ingests a sanctions list export. Each row commits in its
// own transaction so one malformed row does not abort the rest of the file.
func (s *SanctionScreeningService) ImportEntriesCSV(ctx context.Context, reader io.Reader) (*SanctionImportResult, error) {
	entries := []*data.SanctionEntry{}
	if err := gocsv.Unmarshal(reader, &entries); err != nil {
		return nil, fmt.Errorf("parsing sanctions csv: %w", err)
	}

	result := &SanctionImportResult{}
	for i, entry := range entries {
		err := db.RunInTransaction(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) error {
			_, insertErr := s.models.Sanctions.InsertEntry(ctx, dbTx, *entry)
			return insertErr
		})
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			logger.Ctx(ctx).Errorf("importing sanctions row %d: %v", i+1, err)
			continue
		}
		result.Imported++
	}

	logger.Ctx(ctx).Infof("sanctions import finished: %d imported, %d failed", result.Imported, result.Failed)
	return result, nil
}
