package livehttp

import (
	"bufio"
	"context"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"augur/internal/agent"
	"augur/internal/history"
	"augur/internal/logger"
	"augur/internal/store/decisionlog"
)

type StatusSource interface {
	Status() agent.Status
}

type HistorySource interface {
	All(ctx context.Context) ([]history.Entry, error)
}

type DecisionLogSource interface {
	ListDecisions(ctx context.Context, q decisionlog.Query) ([]decisionlog.Record, error)
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Router serves /api/live.
type Router struct {
	status   StatusSource
	history  HistorySource
	logs     DecisionLogSource
	logPaths map[string]string
	logNames []string
}

func NewRouter(status StatusSource, hist HistorySource, logs DecisionLogSource, logPaths map[string]string) *Router {
	names := make([]string, 0, len(logPaths))
	for name, path := range logPaths {
		if strings.TrimSpace(path) == "" || strings.TrimSpace(name) == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return &Router{status: status, history: hist, logs: logs, logPaths: logPaths, logNames: names}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.GET("/history", r.handleHistory)
	group.GET("/decisions", r.handleDecisions)
	group.GET("/logs", r.handleLogs)
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.status.Status())
}

// handleHistory returns the newest limit entries in chronological order.
func (r *Router) handleHistory(c *gin.Context) {
	if r.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history store unavailable"})
		return
	}
	limit := parseLimit(c)
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	entries, err := r.history.All(ctx)
	if err != nil {
		logger.Errorf("[http] history list failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total := len(entries)
	if total > limit {
		entries = entries[total-limit:]
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": total})
}

func (r *Router) handleDecisions(c *gin.Context) {
	if r.logs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "decision log unavailable"})
		return
	}
	q := decisionlog.Query{
		GameID:   strings.TrimSpace(c.Query("game_id")),
		Provider: strings.TrimSpace(c.Query("provider")),
		TraceID:  strings.TrimSpace(c.Query("trace_id")),
		Limit:    parseLimit(c),
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	recs, err := r.logs.ListDecisions(ctx, q)
	if err != nil {
		logger.Errorf("[http] decision list failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}

func (r *Router) handleLogs(c *gin.Context) {
	if len(r.logNames) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no log files configured"})
		return
	}
	name := strings.TrimSpace(c.Query("name"))
	path := strings.TrimSpace(r.logPaths[name])
	if path == "" {
		name = r.logNames[0]
		path = r.logPaths[name]
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	if limit <= 0 {
		limit = 200
	}
	lines, err := readLastLines(path, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "name": name})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "lines": lines, "available": r.logNames})
}

func parseLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(strings.TrimSpace(c.DefaultQuery("limit", "")))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

const maxLogLineSize = 4 * 1024 * 1024 // llm payload dumps can be long

func readLastLines(path string, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLineSize)
	lines := make([]string, 0, limit)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > limit {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
