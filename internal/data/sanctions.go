package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nordbank/banking-platform-backend/db"
)

type SanctionEntry struct {
	ID             string    `json:"id" db:"id" csv:"-"`
	ListName       string    `json:"list_name" db:"list_name" csv:"list_name"`
	FullName       string    `json:"full_name" db:"full_name" csv:"full_name"`
	NationalID     *string   `json:"national_id,omitempty" db:"national_id" csv:"national_id"`
	PassportNumber *string   `json:"passport_number,omitempty" db:"passport_number" csv:"passport_number"`
	Country        *string   `json:"country,omitempty" db:"country" csv:"country"`
	IsPEP          bool      `json:"is_pep" db:"is_pep" csv:"is_pep"`
	CreatedAt      time.Time `json:"created_at" db:"created_at" csv:"-"`
}

type SanctionMatchStatus string

const (
	PotentialSanctionMatchStatus     SanctionMatchStatus = "POTENTIAL"
	ConfirmedSanctionMatchStatus     SanctionMatchStatus = "CONFIRMED"
	FalsePositiveSanctionMatchStatus SanctionMatchStatus = "FALSE_POSITIVE"
)

func (status SanctionMatchStatus) TransitionTo(targetState SanctionMatchStatus) error {
	transitions := []StateTransition{
		{From: State(PotentialSanctionMatchStatus), To: State(ConfirmedSanctionMatchStatus)},
		{From: State(PotentialSanctionMatchStatus), To: State(FalsePositiveSanctionMatchStatus)},
	}
	return NewStateMachine(State(status), transitions).TransitionTo(State(targetState))
}

type SanctionMatch struct {
	ID         string              `json:"id" db:"id"`
	EntryID    string              `json:"entry_id" db:"entry_id"`
	CustomerID string              `json:"customer_id" db:"customer_id"`
	MatchScore int                 `json:"match_score" db:"match_score"`
	Status     SanctionMatchStatus `json:"status" db:"status"`
	CreatedAt  time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at" db:"updated_at"`
}

type SanctionModel struct {
	dbConnectionPool db.DBConnectionPool
}

const sanctionEntryColumns = `
	id, list_name, full_name, national_id, passport_number, country, is_pep, created_at
`

func (m *SanctionModel) InsertEntry(ctx context.Context, sqlExec db.SQLExecuter, entry SanctionEntry) (*SanctionEntry, error) {
	if entry.ListName == "" || entry.FullName == "" {
		return nil, fmt.Errorf("inserting sanction entry: %w: listName and fullName", ErrMissingInput)
	}

	query := `
		INSERT INTO sanction_entries (list_name, full_name, national_id, passport_number, country, is_pep)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + sanctionEntryColumns

	var inserted SanctionEntry
	err := sqlExec.GetContext(ctx, &inserted, query,
		entry.ListName, entry.FullName, entry.NationalID, entry.PassportNumber, entry.Country, entry.IsPEP)
	if err != nil {
		return nil, fmt.Errorf("inserting sanction entry: %w", err)
	}

	return &inserted, nil
}

func (m *SanctionModel) GetAllEntries(ctx context.Context, sqlExec db.SQLExecuter) ([]SanctionEntry, error) {
	query := `SELECT ` + sanctionEntryColumns + ` FROM sanction_entries ORDER BY list_name, full_name`

	entries := []SanctionEntry{}
	err := sqlExec.SelectContext(ctx, &entries, query)
	if err != nil {
		return nil, fmt.Errorf("getting sanction entries: %w", err)
	}

	return entries, nil
}

// GetEntriesByIdentifier returns entries whose national id or passport number
// equals the given identifier.
func (m *SanctionModel) GetEntriesByIdentifier(ctx context.Context, sqlExec db.SQLExecuter, identifier string) ([]SanctionEntry, error) {
	query := `
		SELECT ` + sanctionEntryColumns + `
		FROM sanction_entries
		WHERE national_id = $1 OR passport_number = $1`

	entries := []SanctionEntry{}
	err := sqlExec.SelectContext(ctx, &entries, query, identifier)
	if err != nil {
		return nil, fmt.Errorf("getting sanction entries by identifier: %w", err)
	}

	return entries, nil
}

const sanctionMatchColumns = `
	id, entry_id, customer_id, match_score, status, created_at, updated_at
`

func (m *SanctionModel) InsertMatch(ctx context.Context, sqlExec db.SQLExecuter, entryID, customerID string, matchScore int) (*SanctionMatch, error) {
	if matchScore < 0 || matchScore > 100 {
		return nil, fmt.Errorf("match score %d out of range", matchScore)
	}

	query := `
		INSERT INTO sanction_matches (entry_id, customer_id, match_score)
		VALUES ($1, $2, $3)
		RETURNING ` + sanctionMatchColumns

	var match SanctionMatch
	err := sqlExec.GetContext(ctx, &match, query, entryID, customerID, matchScore)
	if err != nil {
		return nil, fmt.Errorf("inserting sanction match: %w", err)
	}

	return &match, nil
}

func (m *SanctionModel) GetMatch(ctx context.Context, sqlExec db.SQLExecuter, matchID string) (*SanctionMatch, error) {
	query := `SELECT ` + sanctionMatchColumns + ` FROM sanction_matches WHERE id = $1`

	var match SanctionMatch
	err := sqlExec.GetContext(ctx, &match, query, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting sanction match %s: %w", matchID, err)
	}

	return &match, nil
}

func (m *SanctionModel) GetMatchesByCustomer(ctx context.Context, sqlExec db.SQLExecuter, customerID string) ([]SanctionMatch, error) {
	query := `SELECT ` + sanctionMatchColumns + ` FROM sanction_matches WHERE customer_id = $1 ORDER BY created_at DESC`

	matches := []SanctionMatch{}
	err := sqlExec.SelectContext(ctx, &matches, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("getting sanction matches for customer %s: %w", customerID, err)
	}

	return matches, nil
}

func (m *SanctionModel) UpdateMatchStatus(ctx context.Context, sqlExec db.SQLExecuter, matchID string, currentStatus, targetStatus SanctionMatchStatus) (*SanctionMatch, error) {
	if err := currentStatus.TransitionTo(targetStatus); err != nil {
		return nil, fmt.Errorf("validating sanction match status transition: %w", err)
	}

	query := `
		UPDATE sanction_matches
		SET status = $1, updated_at = now()
		WHERE id = $2
		RETURNING ` + sanctionMatchColumns

	var updated SanctionMatch
	err := sqlExec.GetContext(ctx, &updated, query, targetStatus, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("updating status of sanction match %s: %w", matchID, err)
	}

	return &updated, nil
}

// CountConfirmedMatches is used by the customer risk profile scoring.
func (m *SanctionModel) CountConfirmedMatches(ctx context.Context, sqlExec db.SQLExecuter, customerID string) (int, error) {
	query := `SELECT COUNT(*) FROM sanction_matches WHERE customer_id = $1 AND status = $2`

	var count int
	err := sqlExec.GetContext(ctx, &count, query, customerID, ConfirmedSanctionMatchStatus)
	if err != nil {
		return 0, fmt.Errorf("counting confirmed sanction matches for customer %s: %w", customerID, err)
	}

	return count, nil
}
