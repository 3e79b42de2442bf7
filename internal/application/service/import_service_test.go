package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearledger/bankrecon-backend/internal/domain/statement"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/config"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/storage"
)

func testConfig() *config.Config {
	cfg := config.LoadFromEnv()
	return cfg
}

func TestImportService_Import(t *testing.T) {
	const raw = `date,amount,reference
2024-01-15,1250.00,RE-2024-0042
2024-01-17,-320.50,STROM
`
	repo := storage.NewMockRepository()
	svc := NewImportService(testConfig(), repo, nil)

	rec, err := svc.Import(context.Background(), statement.FormatCSV, []byte(raw), "ACC-1")
	require.NoError(t, err)

	assert.True(t, repo.SaveStatementCalled)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "ACC-1", rec.AccountID)
	assert.Equal(t, statement.FormatCSV, rec.Format)
	// CSV carries no account block; the caller's account stands in as IBAN.
	assert.Equal(t, "ACC-1", rec.AccountIBAN)
	assert.Empty(t, rec.ParseErrors)
	require.Len(t, rec.Lines, 2)
	assert.True(t, rec.ClosingBalance.Equal(decimal.NewFromFloat(929.50)))

	for _, line := range rec.Lines {
		assert.NotEmpty(t, line.ID)
		assert.Equal(t, rec.ID, line.StatementID)
		assert.Equal(t, statement.StatusUnmatched, line.Status)
	}

	// The record is retrievable with its lines.
	stored, err := repo.GetStatement(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 2)
}

func TestImportService_ZeroConfigFallsBackToParserDefaults(t *testing.T) {
	repo := storage.NewMockRepository()
	// A config that never went through applyDefaults.
	svc := NewImportService(&config.Config{}, repo, nil)

	rec, err := svc.Import(context.Background(), statement.FormatCSV,
		[]byte("date,amount\n2024-01-15,100.00\n"), "ACC-1")
	require.NoError(t, err)

	require.Len(t, rec.Lines, 1)
	assert.Equal(t, "EUR", rec.Lines[0].Currency)
}

func TestImportService_ParseErrorsAreReturnedNotFatal(t *testing.T) {
	const raw = `date,amount
2024-01-15,100.00
broken-row,abc
`
	repo := storage.NewMockRepository()
	svc := NewImportService(testConfig(), repo, nil)

	rec, err := svc.Import(context.Background(), statement.FormatCSV, []byte(raw), "ACC-1")
	require.NoError(t, err)

	assert.Len(t, rec.Lines, 1)
	require.Len(t, rec.ParseErrors, 1)
	assert.Equal(t, 3, rec.ParseErrors[0].Line)
}

func TestImportService_FormatErrorFailsImport(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := NewImportService(testConfig(), repo, nil)

	_, err := svc.Import(context.Background(), statement.FormatCAMT, []byte("not xml <<<"), "ACC-1")
	require.Error(t, err)

	var formatErr *statement.FormatError
	assert.ErrorAs(t, err, &formatErr)
	assert.False(t, repo.SaveStatementCalled)
}

func TestImportService_PersistenceFailurePropagates(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.SaveStatementErr = errors.New("disk full")
	svc := NewImportService(testConfig(), repo, nil)

	_, err := svc.Import(context.Background(), statement.FormatCSV,
		[]byte("date,amount\n2024-01-15,1.00\n"), "ACC-1")
	assert.ErrorContains(t, err, "disk full")
}
