//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchResult struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	PageNumber   int     `json:"page_number"`
	Score        float64 `json:"score"`
	Similarity   float64 `json:"similarity"`
	Confidence   string  `json:"confidence"`
	Excerpt      string  `json:"excerpt"`
	FullText     string  `json:"full_text"`
}

type searchResponse struct {
	Results    []searchResult `json:"results"`
	DurationMS int64          `json:"duration_ms"`
}

type documentsResponse struct {
	Documents []struct {
		DocumentID string `json:"document_id"`
		Chunks     int    `json:"chunks"`
	} `json:"documents"`
}

const waterSOP = `Water Damage Response Procedure.
Upon notification of a burst pipe or supply line failure, instruct the
policyholder to shut off the main water supply valve immediately. Document
standing water in the kitchen and adjacent rooms with timestamped photos.
Mitigation must begin within 24 hours to limit secondary mold damage.
Category 2 water from appliance lines requires antimicrobial treatment
of affected flooring and drywall before reconstruction estimates.`

const floodPolicy = `Flood Coverage Endorsement.
Losses caused by storm surge, hurricane rainfall accumulation, or rising
water from named flood zones are covered only when the flood endorsement
was active at the date of loss. Elevation certificates determine the
applicable deductible tier for structures in designated zones.`

func TestE2E_Pipeline(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	env.WriteDoc("water_damage_sop.txt", waterSOP, map[string]string{
		"type": "sop", "state": "ca", "category": "water_damage",
	})
	env.WriteDoc("fl_flood_policy.txt", floodPolicy, map[string]string{
		"type": "policy", "state": "fl", "category": "flood",
	})

	searchBody := map[string]interface{}{
		"case_id":       "CLM-2026-0042",
		"claim_type":    "water_damage",
		"state":         "ca",
		"property_type": "residential",
		"claim_amount":  12500.0,
		"notes":         "burst pipe flooded the kitchen, standing water on flooring",
	}

	t.Run("search before ingest returns empty", func(t *testing.T) {
		status, resp, err := env.Post("/v1/search", searchBody)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)

		var out searchResponse
		require.NoError(t, json.Unmarshal(resp.Data, &out))
		assert.Empty(t, out.Results)
	})

	t.Run("ingest directory", func(t *testing.T) {
		report, err := env.Ingest.IngestDirectory(env.Ctx, env.DocsDir)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Succeeded)
		assert.Zero(t, report.Failed)
		assert.Greater(t, report.Chunks, 0)
	})

	t.Run("list documents", func(t *testing.T) {
		status, resp, err := env.Get("/v1/documents")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)

		var out documentsResponse
		require.NoError(t, json.Unmarshal(resp.Data, &out))
		require.Len(t, out.Documents, 2)

		ids := []string{out.Documents[0].DocumentID, out.Documents[1].DocumentID}
		assert.ElementsMatch(t, []string{"water_damage_sop", "fl_flood_policy"}, ids)
		for _, d := range out.Documents {
			assert.Greater(t, d.Chunks, 0)
		}
	})

	t.Run("search ranks matching document first", func(t *testing.T) {
		status, resp, err := env.Post("/v1/search", searchBody)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)

		var out searchResponse
		require.NoError(t, json.Unmarshal(resp.Data, &out))
		require.NotEmpty(t, out.Results)

		top := out.Results[0]
		assert.Equal(t, "water_damage_sop", top.DocumentID)
		assert.GreaterOrEqual(t, top.PageNumber, 1)
		assert.Greater(t, top.Similarity, 0.0)
		assert.LessOrEqual(t, top.Similarity, 1.0)
		assert.Contains(t, []string{"High", "Medium", "Low"}, top.Confidence)

		require.NotEmpty(t, top.Excerpt)
		assert.True(t, strings.Contains(waterSOP, top.Excerpt),
			"excerpt must be a literal substring of the source document")
		require.NotEmpty(t, top.FullText)
		assert.True(t, strings.Contains(top.FullText, top.Excerpt),
			"excerpt must be a literal substring of the returned full text")

		for i := 1; i < len(out.Results); i++ {
			assert.GreaterOrEqual(t, out.Results[i-1].Score, out.Results[i].Score)
		}
	})

	t.Run("filter relaxation falls back to unfiltered", func(t *testing.T) {
		body := map[string]interface{}{
			"claim_type": "water_damage",
			"state":      "tx",
			"notes":      "burst pipe flooded the kitchen",
		}
		status, resp, err := env.Post("/v1/search", body)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)

		var out searchResponse
		require.NoError(t, json.Unmarshal(resp.Data, &out))
		assert.NotEmpty(t, out.Results, "no tx documents exist, so the unfiltered retry should still surface matches")
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		status, resp, err := env.PostRaw("/v1/search", []byte("{not json"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.NotEmpty(t, resp.Error)
	})

	t.Run("re-ingest replaces document chunks", func(t *testing.T) {
		env.WriteDoc("water_damage_sop.txt",
			"Revised water damage procedure. Shut off the supply valve.",
			map[string]string{"type": "sop", "state": "ca", "category": "water_damage"})

		report, err := env.Ingest.IngestDirectory(env.Ctx, env.DocsDir)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Succeeded)

		status, resp, err := env.Get("/v1/documents")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)

		var out documentsResponse
		require.NoError(t, json.Unmarshal(resp.Data, &out))
		require.Len(t, out.Documents, 2, "re-ingest must replace, not duplicate")

		for _, d := range out.Documents {
			if d.DocumentID == "water_damage_sop" {
				assert.Equal(t, 1, d.Chunks, "shorter revision should collapse to a single chunk")
			}
		}
	})
}
