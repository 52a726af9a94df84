package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreMissingFileIsFresh(t *testing.T) {
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "storage.json"))
	require.NoError(t, err)

	snapshot, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, financing.NewSnapshot(), snapshot)
}

func TestFileStoreRoundTripLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	fs, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	snapshot := financing.NewSnapshot()
	_, err = financing.CreateCampaign(snapshot, campaignFields(1), testNow)
	require.NoError(t, err)
	_, err = financing.ApproveCampaign(snapshot, 1, testNow)
	require.NoError(t, err)
	require.NoError(t, fs.Save(ctx, snapshot))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	for _, key := range []string{"campaigns", "investments", "microloans", "next_campaign_id", "next_investment_id", "next_microloan_id"} {
		assert.Contains(t, doc, key)
	}

	loaded, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snapshot, loaded)
	require.NotNil(t, loaded.Campaigns[0].TokenSymbol)
	assert.Equal(t, "CAC", *loaded.Campaigns[0].TokenSymbol)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStoreNormalizesLegacyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	legacy := `{"campaigns": [], "investments": [], "next_campaign_id": 4, "next_investment_id": 2}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	fs, err := NewFileStore(path)
	require.NoError(t, err)
	snapshot, err := fs.Load(context.Background())
	require.NoError(t, err)

	assert.NotNil(t, snapshot.Microloans)
	assert.Equal(t, int64(4), snapshot.NextCampaignID)
	assert.Equal(t, int64(1), snapshot.NextMicroloanID)
}

func TestFileStoreCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	fs, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = fs.Load(context.Background())
	assert.Error(t, err)

	_, err = NewFileStore("")
	assert.Error(t, err)
}
