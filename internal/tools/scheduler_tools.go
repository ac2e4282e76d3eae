// Package tools exposes the scheduler's public API as agent-callable tool
// definitions. Each tool performs one scheduler.Service operation; the
// single-job tools first look the job up with Get and answer not_found when
// it belongs to another tenant. None of them bypass the validation or quota
// checks the service itself enforces.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"schedulerd/internal/scheduler"
)

// ToolDefinition is the JSON-schema shape an agent-callable function is
// advertised with.
type ToolDefinition struct {
	Type     string          `json:"type"`
	Function ToolFunctionDef `json:"function"`
}

type ToolFunctionDef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// Tool is one admin-surface function. tenant is bound by the caller from
// the conversation context, never taken from args, so a tool call can
// never act on another tenant's jobs.
type Tool interface {
	Definition() ToolDefinition
	Call(ctx context.Context, tenant int64, args json.RawMessage) (string, error)
}

// Registry maps tool names to implementations for dispatch by an agent
// loop's tool-call handler.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry(svc *scheduler.Service) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range []Tool{
		&ScheduleListTool{svc: svc},
		&ScheduleGetTool{svc: svc},
		&ScheduleCreateTool{svc: svc},
		&ScheduleRemoveTool{svc: svc},
		&ScheduleSetEnabledTool{svc: svc},
		&ScheduleRenameTool{svc: svc},
		&ScheduleRunNowTool{svc: svc},
		&ScheduleStatusTool{svc: svc},
	} {
		r.tools[t.Definition().Function.Name] = t
	}
	return r
}

func (r *Registry) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	return defs
}

func (r *Registry) Call(ctx context.Context, name string, tenant int64, args json.RawMessage) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return t.Call(ctx, tenant, args)
}

func jobView(j scheduler.Job) map[string]any {
	return map[string]any{
		"id":          j.ID,
		"name":        j.Name,
		"prompt":      j.Prompt,
		"enabled":     j.Enabled,
		"schedule":    j.Schedule,
		"nextRunAtMs": j.State.NextRunAtMs,
		"lastStatus":  j.State.LastStatus,
		"lastError":   j.State.LastError,
	}
}

func toJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// --- schedule_list ---

type ScheduleListTool struct{ svc *scheduler.Service }

func (t *ScheduleListTool) Definition() ToolDefinition {
	return ToolDefinition{Type: "function", Function: ToolFunctionDef{
		Name:        "schedule_list",
		Description: "List every scheduled job owned by the calling tenant.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}}
}

func (t *ScheduleListTool) Call(_ context.Context, tenant int64, _ json.RawMessage) (string, error) {
	jobs := t.svc.List(&tenant)
	views := make([]map[string]any, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, jobView(j))
	}
	return toJSON(map[string]any{"status": "ok", "jobs": views, "count": len(views)})
}

// --- schedule_get ---

type ScheduleGetTool struct{ svc *scheduler.Service }

func (t *ScheduleGetTool) Definition() ToolDefinition {
	return ToolDefinition{Type: "function", Function: ToolFunctionDef{
		Name:        "schedule_get",
		Description: "Get one scheduled job by id.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"id": map[string]any{"type": "string"}},
			"required":   []string{"id"},
		},
	}}
}

func (t *ScheduleGetTool) Call(_ context.Context, tenant int64, args json.RawMessage) (string, error) {
	var in struct{ ID string `json:"id"` }
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	job, ok := t.svc.Get(in.ID)
	if !ok || job.Tenant != tenant {
		return toJSON(map[string]any{"status": "not_found"})
	}
	return toJSON(map[string]any{"status": "ok", "job": jobView(job)})
}

// --- schedule_create ---

type ScheduleCreateTool struct{ svc *scheduler.Service }

func (t *ScheduleCreateTool) Definition() ToolDefinition {
	return ToolDefinition{Type: "function", Function: ToolFunctionDef{
		Name:        "schedule_create",
		Description: "Create a new scheduled job: fires prompt against the agent on an at/every/cron schedule.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":     map[string]any{"type": "string"},
				"prompt":   map[string]any{"type": "string"},
				"kind":     map[string]any{"type": "string", "enum": []string{"at", "every", "cron"}},
				"atMs":     map[string]any{"type": "integer"},
				"everyMs":  map[string]any{"type": "integer"},
				"anchorMs": map[string]any{"type": "integer"},
				"expr":     map[string]any{"type": "string"},
				"timezone": map[string]any{"type": "string"},
			},
			"required": []string{"prompt", "kind"},
		},
	}}
}

func (t *ScheduleCreateTool) Call(_ context.Context, tenant int64, args json.RawMessage) (string, error) {
	var in struct {
		Name     string `json:"name"`
		Prompt   string `json:"prompt"`
		Kind     string `json:"kind"`
		AtMs     int64  `json:"atMs"`
		EveryMs  int64  `json:"everyMs"`
		AnchorMs int64  `json:"anchorMs"`
		Expr     string `json:"expr"`
		Timezone string `json:"timezone"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	job, err := t.svc.Create(scheduler.CreateInput{
		Tenant: tenant,
		Name:   in.Name,
		Prompt: in.Prompt,
		Schedule: scheduler.Schedule{
			Kind:     scheduler.ScheduleKind(in.Kind),
			AtMs:     in.AtMs,
			EveryMs:  in.EveryMs,
			AnchorMs: in.AnchorMs,
			Expr:     in.Expr,
			Timezone: in.Timezone,
		},
	})
	if err != nil {
		return toJSON(map[string]any{"status": "error", "error": err.Error()})
	}
	return toJSON(map[string]any{"status": "ok", "job": jobView(job)})
}

// --- schedule_remove ---

type ScheduleRemoveTool struct{ svc *scheduler.Service }

func (t *ScheduleRemoveTool) Definition() ToolDefinition {
	return ToolDefinition{Type: "function", Function: ToolFunctionDef{
		Name:        "schedule_remove",
		Description: "Remove a scheduled job by id.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"id": map[string]any{"type": "string"}},
			"required":   []string{"id"},
		},
	}}
}

func (t *ScheduleRemoveTool) Call(_ context.Context, tenant int64, args json.RawMessage) (string, error) {
	var in struct{ ID string `json:"id"` }
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	job, ok := t.svc.Get(in.ID)
	if !ok || job.Tenant != tenant {
		return toJSON(map[string]any{"status": "not_found"})
	}
	removed := t.svc.Remove(in.ID)
	status := "ok"
	if !removed {
		status = "not_found"
	}
	return toJSON(map[string]any{"status": status})
}

// --- schedule_set_enabled ---

type ScheduleSetEnabledTool struct{ svc *scheduler.Service }

func (t *ScheduleSetEnabledTool) Definition() ToolDefinition {
	return ToolDefinition{Type: "function", Function: ToolFunctionDef{
		Name:        "schedule_set_enabled",
		Description: "Enable or disable a scheduled job by id.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":      map[string]any{"type": "string"},
				"enabled": map[string]any{"type": "boolean"},
			},
			"required": []string{"id", "enabled"},
		},
	}}
}

func (t *ScheduleSetEnabledTool) Call(_ context.Context, tenant int64, args json.RawMessage) (string, error) {
	var in struct {
		ID      string `json:"id"`
		Enabled bool   `json:"enabled"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	existing, ok := t.svc.Get(in.ID)
	if !ok || existing.Tenant != tenant {
		return toJSON(map[string]any{"status": "not_found"})
	}
	job, ok := t.svc.SetEnabled(in.ID, in.Enabled)
	if !ok {
		return toJSON(map[string]any{"status": "not_found"})
	}
	return toJSON(map[string]any{"status": "ok", "job": jobView(job)})
}

// --- schedule_rename ---

type ScheduleRenameTool struct{ svc *scheduler.Service }

func (t *ScheduleRenameTool) Definition() ToolDefinition {
	return ToolDefinition{Type: "function", Function: ToolFunctionDef{
		Name:        "schedule_rename",
		Description: "Rename a scheduled job by id.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":   map[string]any{"type": "string"},
				"name": map[string]any{"type": "string"},
			},
			"required": []string{"id", "name"},
		},
	}}
}

func (t *ScheduleRenameTool) Call(_ context.Context, tenant int64, args json.RawMessage) (string, error) {
	var in struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	existing, ok := t.svc.Get(in.ID)
	if !ok || existing.Tenant != tenant {
		return toJSON(map[string]any{"status": "not_found"})
	}
	job, ok := t.svc.Rename(in.ID, in.Name)
	if !ok {
		return toJSON(map[string]any{"status": "not_found"})
	}
	return toJSON(map[string]any{"status": "ok", "job": jobView(job)})
}

// --- schedule_run_now ---

type ScheduleRunNowTool struct{ svc *scheduler.Service }

func (t *ScheduleRunNowTool) Definition() ToolDefinition {
	return ToolDefinition{Type: "function", Function: ToolFunctionDef{
		Name:        "schedule_run_now",
		Description: "Force an immediate run of a scheduled job by id.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"id": map[string]any{"type": "string"}},
			"required":   []string{"id"},
		},
	}}
}

func (t *ScheduleRunNowTool) Call(_ context.Context, tenant int64, args json.RawMessage) (string, error) {
	var in struct{ ID string `json:"id"` }
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	existing, ok := t.svc.Get(in.ID)
	if !ok || existing.Tenant != tenant {
		return toJSON(map[string]any{"status": "not_found"})
	}
	queued := t.svc.RunNow(in.ID)
	status := "ok"
	if !queued {
		status = "not_found"
	}
	return toJSON(map[string]any{"status": status})
}

// --- schedule_status ---

type ScheduleStatusTool struct{ svc *scheduler.Service }

func (t *ScheduleStatusTool) Definition() ToolDefinition {
	return ToolDefinition{Type: "function", Function: ToolFunctionDef{
		Name:        "schedule_status",
		Description: "Summarize the calling tenant's scheduled jobs (counts, next run time).",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}}
}

func (t *ScheduleStatusTool) Call(_ context.Context, tenant int64, _ json.RawMessage) (string, error) {
	st := t.svc.Status(&tenant)
	return toJSON(map[string]any{
		"status":      "ok",
		"totalJobs":   st.TotalJobs,
		"enabledJobs": st.EnabledJobs,
		"runningJobs": st.RunningJobs,
		"queuedJobs":  st.QueuedJobs,
		"nextRunAtMs": st.NextRunAtMs,
	})
}
