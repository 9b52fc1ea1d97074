package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/readerview/pkg/models"
	"github.com/Sriram-PR/readerview/pkg/reader"
	"github.com/Sriram-PR/readerview/pkg/utils"
)

// articleView is the tool-facing shape of an extraction result
type articleView struct {
	URL           string               `json:"url"`
	Title         string               `json:"title,omitempty"`
	Author        *string              `json:"author,omitempty"`
	Excerpt       *string              `json:"excerpt,omitempty"`
	DatePublished *time.Time           `json:"date_published,omitempty"`
	Metadata      *models.SiteMetadata `json:"metadata,omitempty"`
	Content       *string              `json:"content,omitempty"`
	Markdown      string               `json:"markdown,omitempty"`
	Headings      []models.Heading     `json:"headings,omitempty"`
	TokenCount    int                  `json:"token_count,omitempty"`
	Chunks        []string             `json:"chunks,omitempty"`
	StyledHTML    string               `json:"styled_html,omitempty"`
}

func newArticleView(url string, res *models.FetchAndExtractionResult) articleView {
	return articleView{
		URL:           url,
		Title:         res.Title(),
		Author:        res.Extracted.Author,
		Excerpt:       res.Extracted.Excerpt,
		DatePublished: res.Extracted.DatePublished,
		Metadata:      res.Metadata,
		Content:       res.Extracted.Content,
	}
}

func extractorArg(request mcp.CallToolRequest) (models.ExtractorKind, error) {
	raw := request.GetString("extractor", "")
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return models.ParseExtractorKind(raw)
}

// toolError reports err to the client, tagged with its category
func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", utils.CategorizeError(err), err))
}

// handleFetchAndExtract handles the fetch_and_extract tool
func (s *Server) handleFetchAndExtract(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urlStr := request.GetString("url", "")
	if urlStr == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}
	kind, err := extractorArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	start := time.Now()
	res, err := s.cfg.Reader.FetchAndExtract(ctx, urlStr,
		reader.WithExtractor(kind),
		reader.WithWebView(request.GetBool("webview", false)),
	)
	if err != nil {
		return toolError(err), nil
	}

	view := newArticleView(urlStr, res)
	if request.GetBool("markdown", false) {
		d, err := s.cfg.Reader.Digest(res)
		if err != nil {
			return toolError(err), nil
		}
		view.Content = nil
		view.Markdown = d.Markdown
		view.Headings = d.Headings
		view.TokenCount = d.TokenCount
		view.Chunks = d.Chunks
	}
	if request.GetBool("include_html", false) {
		view.StyledHTML = res.StyledHTML
	}
	s.log.WithField("url", urlStr).Debugf("fetch_and_extract took %s", time.Since(start).Round(time.Millisecond))
	return mcp.NewToolResultText(formatJSON(view)), nil
}

// handleExtractHTML handles the extract_html tool
func (s *Server) handleExtractHTML(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urlStr := request.GetString("url", "")
	html := request.GetString("html", "")
	if urlStr == "" || html == "" {
		return mcp.NewToolResultError("url and html parameters are required"), nil
	}
	kind, err := extractorArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	article, err := s.cfg.Reader.ExtractArticleContent(ctx, urlStr, html, kind)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(formatJSON(article)), nil
}

// handleWarmup handles the warmup tool
func (s *Server) handleWarmup(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := extractorArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.cfg.Reader.Warmup(kind); err != nil {
		return toolError(err), nil
	}
	states := s.cfg.Reader.States()
	engines := make(map[string]string, len(states))
	for k, st := range states {
		engines[k.String()] = st.String()
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"status":    "warming",
		"extractor": kind.String(),
		"engines":   engines,
	})), nil
}

// handleStartExtract handles the start_extract tool
func (s *Server) handleStartExtract(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urlStr := request.GetString("url", "")
	if urlStr == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}
	kind, err := extractorArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	job, created := s.jobManager.CreateJob(JobRequest{
		URL:       urlStr,
		Extractor: kind,
		WebView:   request.GetBool("webview", false),
	})
	if !created {
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"status":  "already_running",
			"message": "An extraction for this URL is already in progress",
			"job_id":  job.ID,
		})), nil
	}

	go s.runExtractJob(job.ID, job.Request)

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"status": "started",
		"job_id": job.ID,
		"url":    urlStr,
	})), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job := s.jobManager.GetJob(jobID)
	if job == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":     job.ID,
		"url":        job.Request.URL,
		"status":     job.Status,
		"started_at": job.StartedAt.Format(time.RFC3339),
	}
	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}
	if job.Result != nil {
		result["article"] = newArticleView(job.Request.URL, job.Result)
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// runExtractJob runs a fetch and extract in the background
func (s *Server) runExtractJob(jobID string, req JobRequest) {
	ctx, ok := s.jobManager.Start(jobID)
	if !ok {
		return
	}
	res, err := s.cfg.Reader.FetchAndExtract(ctx, req.URL,
		reader.WithExtractor(req.Extractor),
		reader.WithWebView(req.WebView),
	)
	s.jobManager.Finish(jobID, res, err)
	if err != nil {
		s.log.WithField("job_id", jobID).Warnf("Extraction job failed: %v", err)
	}
}

// formatJSON formats data as an indented JSON string
func formatJSON(data interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
