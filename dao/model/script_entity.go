package model

import (
	"errors"
	"time"

	"github.com/fatih/structs"
)

const (
	TimingExecute = 0
	DelayExecute  = 1
)
const (
	Runnable = 1
	Stop     = 0
)

// ErrNotFound is returned by every store when no script has the requested id.
var ErrNotFound = errors.New("script not found")

// ScriptEntity is a stored script together with its schedule.
type ScriptEntity struct {
	Name         string     `json:"name,omitempty" bson:"name,omitempty" structs:"name,omitempty"`
	ScriptId     string     `json:"scriptId,omitempty" bson:"scriptId,omitempty" structs:"scriptId,omitempty"`
	Cron         string     `json:"cron,omitempty" bson:"cron,omitempty" structs:"cron,omitempty"`
	Description  string     `json:"description" bson:"description,omitempty" structs:"description,omitempty"`
	LastExecTime *time.Time `json:"lastExecTime,omitempty" bson:"lastExecTime,omitempty" structs:"lastExecTime,omitempty,omitnested"`
	ExecAt       *time.Time `json:"execAt,omitempty" bson:"execAt,omitempty" structs:"execAt,omitempty,omitnested"`
	ExecType     uint8      `json:"execType" bson:"execType" structs:"execType"`
	State        uint8      `json:"state" bson:"state" structs:"state"`
	// Language is the file extension the source is loaded with, ".js" when empty.
	Language string `json:"language,omitempty" bson:"language,omitempty" structs:"language,omitempty"`
	Source   string `json:"source,omitempty" bson:"source,omitempty" structs:"source,omitempty"`
}

const (
	ScriptId     = "scriptId"
	Source       = "source"
	Name         = "name"
	LastExecTime = "lastExecTime"
	Description  = "description"
	Cron         = "cron"
	ExecType     = "execType"
	ExecAt       = "execAt"
	State        = "state"
	Language     = "language"
)

// Fields returns the non-empty fields of e keyed by their stored names, ready for an update.
// ExecType and State are always present.
func (e ScriptEntity) Fields() map[string]any {
	mp := structs.Map(e)
	delete(mp, ScriptId)
	return mp
}

// FileName is the virtual file name the script runs under.
func (e ScriptEntity) FileName() string {
	ext := e.Language
	if ext == "" {
		ext = ".js"
	}
	if ext[0] != '.' {
		ext = "." + ext
	}
	return e.ScriptId + ext
}
