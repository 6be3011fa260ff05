package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/MrSnakeDoc/sourcehub/internal/auth"
	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/version"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderTable(w io.Writer, header []string, rows [][]string) error {
	cols := make([]any, len(header))
	for i, h := range header {
		cols[i] = h
	}
	table := tablewriter.NewWriter(w)
	table.Header(cols...)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func renderSources(w io.Writer, format string, sources []domain.DataSource, activeID string) error {
	if format == outputJSON {
		return writeJSON(w, struct {
			Sources  []domain.DataSource `json:"sources"`
			ActiveID string              `json:"activeId"`
		}{sources, activeID})
	}

	rows := make([][]string, 0, len(sources))
	for _, s := range sources {
		active := ""
		if s.ID == activeID {
			active = "*"
		}
		base := s.Connection.BaseURL
		if s.IsLocal() {
			base = "(platform)"
		}
		rows = append(rows, []string{active, s.ID, string(s.Kind), s.Name, base, string(s.Status), s.LastError})
	}
	return renderTable(w, []string{"", "ID", "KIND", "NAME", "BASE URL", "STATUS", "LAST ERROR"}, rows)
}

func renderHealth(w io.Writer, format string, sources []domain.DataSource, results map[string]domain.HealthStatus) error {
	if format == outputJSON {
		return writeJSON(w, results)
	}

	rows := make([][]string, 0, len(sources))
	for _, s := range sources {
		hs, ok := results[s.ID]
		if !ok {
			continue
		}
		db := ""
		if hs.DatabaseOK != nil {
			db = strconv.FormatBool(*hs.DatabaseOK)
		}
		rows = append(rows, []string{
			s.ID,
			s.Name,
			string(hs.Status),
			fmt.Sprintf("%dms", hs.LatencyMs),
			hs.Version,
			db,
			hs.Error,
		})
	}
	return renderTable(w, []string{"ID", "NAME", "STATUS", "LATENCY", "VERSION", "DATABASE", "ERROR"}, rows)
}

func renderTestResult(w io.Writer, format, baseURL string, res auth.TestResult) error {
	errMsg := ""
	if res.Err != nil {
		errMsg = res.Err.Error()
	}
	if format == outputJSON {
		return writeJSON(w, struct {
			URL        string `json:"url"`
			Success    bool   `json:"success"`
			TeamsCount int64  `json:"teamsCount"`
			Version    string `json:"version,omitempty"`
			Error      string `json:"error,omitempty"`
		}{baseURL, res.Success, res.TeamsCount, res.Version, errMsg})
	}
	return renderTable(w, []string{"URL", "SUCCESS", "TEAMS", "VERSION", "ERROR"}, [][]string{{
		baseURL,
		strconv.FormatBool(res.Success),
		strconv.FormatInt(res.TeamsCount, 10),
		res.Version,
		errMsg,
	}})
}

func renderVersion(w io.Writer, format string, info version.Info) error {
	if format == outputJSON {
		return writeJSON(w, info)
	}
	_, err := fmt.Fprintf(w, "sourcehub %s (commit=%s, built=%s, go=%s, %s)\n",
		info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
	return err
}
