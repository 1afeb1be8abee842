package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"jsbridge/dao"
	"jsbridge/dao/model"
	"jsbridge/job"
	"jsbridge/js_exec/console"
	"jsbridge/logger"
	"jsbridge/schedule"
)

// minDelay is the shortest accepted distance between now and a delayed execution.
const minDelay = 5 * time.Second

// Scheduler is the part of the schedule the API drives.
type Scheduler interface {
	CancelJob(key string) error
	HandleJobStateChange(ctx context.Context, key string, state uint8) error
	HandleJobTimeChange(ctx context.Context, key string) error
}

type Server struct {
	dao      dao.Dao
	schedule Scheduler
	runner   *job.Runner
	modules  func() []string
	upgrade  websocket.Upgrader
	log      *log.Logger
}

func New(d dao.Dao, s Scheduler, runner *job.Runner, modules func() []string) *Server {
	return &Server{
		dao:      d,
		schedule: s,
		runner:   runner,
		modules:  modules,
		upgrade: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: logger.With("component", "server"),
	}
}

func (s *Server) RegistryRouting(engine *gin.Engine) {
	api := engine.Group("/api")
	{
		api.GET("/scripts", s.List)
		api.POST("/script", s.Create)
		api.GET("/script/:id", s.Get)
		api.PUT("/script/:id", s.Update)
		api.DELETE("/script/:id", s.Remove)
		api.POST("/run", s.Run)
		api.POST("/enable", s.Enable)
		api.GET("/modules", s.Modules)
		api.GET("/debug", s.Debug)
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, model.ErrNotFound) {
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) List(c *gin.Context) {
	scripts, err := s.dao.ListScripts(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": scripts})
}

func (s *Server) Get(c *gin.Context) {
	sc, err := s.dao.GetScript(c, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sc})
}

// Create stores a script in the stopped state. ?type=TIMING (default) or DELAY selects how it
// is triggered once enabled.
func (s *Server) Create(c *gin.Context) {
	execType, err := getExecType(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var sc model.ScriptEntity
	if err = c.ShouldBindJSON(&sc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sc.ExecType = execType
	if err = checkTimeSettings(sc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sc.State = model.Stop
	sc.LastExecTime = nil
	id, err := s.dao.AddScript(c, sc)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": id})
}

// editable are the fields a client may change through Update.
var editable = []string{
	model.Name, model.Cron, model.Description, model.ExecType, model.ExecAt, model.Language, model.Source,
}

func (s *Server) Update(c *gin.Context) {
	id := c.Param("id")
	var mp map[string]json.RawMessage
	if err := c.ShouldBindJSON(&mp); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	raw, _ := json.Marshal(mp)
	var patch model.ScriptEntity
	if err := json.Unmarshal(raw, &patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	current, err := s.dao.GetScript(c, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	fields := map[string]any{}
	for _, k := range editable {
		if _, ok := mp[k]; ok {
			fields[k] = fieldOf(patch, k)
		}
	}
	merged := current
	applyFields(&merged, fields)
	if err = checkTimeSettings(merged); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err = s.dao.UpdateScript(c, id, fields); err != nil {
		s.fail(c, err)
		return
	}
	if merged.State == model.Runnable {
		if err = s.schedule.HandleJobTimeChange(c, id); err != nil {
			s.log.Warn("script not re-armed", "script", id, "err", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) Remove(c *gin.Context) {
	id := c.Param("id")
	_ = s.schedule.CancelJob(id)
	if err := s.dao.RemoveScript(c, id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// Enable switches a script between runnable and stopped: /api/enable?id=..&enable=true.
func (s *Server) Enable(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	enable, err := strconv.ParseBool(c.Query("enable"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "enable must be a boolean"})
		return
	}
	sc, err := s.dao.GetScript(c, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	state := uint8(model.Stop)
	if enable {
		if err = checkTimeSettings(sc); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		state = model.Runnable
	}
	if err = s.dao.UpdateScript(c, id, map[string]any{model.State: state}); err != nil {
		s.fail(c, err)
		return
	}
	if err = s.schedule.HandleJobStateChange(c, id, state); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

type runRequest struct {
	Source   string `json:"source" binding:"required"`
	Language string `json:"language"`
}

// Run executes an ad hoc script and returns its console output.
func (s *Server) Run(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec := &console.Recorder{}
	name := model.ScriptEntity{ScriptId: "run", Language: req.Language}.FileName()
	if err := s.runner.Run(c.Request.Context(), name, req.Source, rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "data": rec.Lines()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rec.Lines()})
}

func (s *Server) Modules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.modules()})
}

type wsWriter struct {
	ws *websocket.Conn
}

func (w *wsWriter) Write(p []byte) (n int, err error) {
	err = w.ws.WriteMessage(websocket.TextMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// Debug runs a stored script and streams its console over a websocket. The last message is
// "[done]" or "[failed] <reason>".
func (s *Server) Debug(c *gin.Context) {
	id := c.Query("id")
	ws, err := s.upgrade.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", "err", err)
		return
	}
	defer func(ws *websocket.Conn) {
		_ = ws.Close()
	}(ws)

	w := &wsWriter{ws: ws}
	sink := console.NewWriterSink(w)
	err = s.runner.RunScript(c.Request.Context(), id, sink)
	final := "[done]"
	if err != nil {
		final = fmt.Sprintf("[failed] %v", err)
	}
	_, _ = w.Write([]byte(final))
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

func checkTimeSettings(sc model.ScriptEntity) error {
	if sc.ExecType == model.TimingExecute {
		if err := schedule.CheckCron(sc.Cron); err != nil {
			return errors.New("invalid cron expression")
		}
		return nil
	}
	if sc.ExecAt == nil {
		return errors.New("invalid exec time")
	}
	if time.Until(*sc.ExecAt) < minDelay {
		return fmt.Errorf("the minimum delay is %s", minDelay)
	}
	return nil
}

func getExecType(c *gin.Context) (uint8, error) {
	switch strings.ToUpper(c.DefaultQuery("type", "TIMING")) {
	case "TIMING":
		return model.TimingExecute, nil
	case "DELAY":
		return model.DelayExecute, nil
	}
	return 0, errors.New("invalid script type")
}

func fieldOf(e model.ScriptEntity, key string) any {
	switch key {
	case model.Name:
		return e.Name
	case model.Cron:
		return e.Cron
	case model.Description:
		return e.Description
	case model.ExecType:
		return e.ExecType
	case model.ExecAt:
		return e.ExecAt
	case model.Language:
		return e.Language
	case model.Source:
		return e.Source
	}
	return nil
}

func applyFields(e *model.ScriptEntity, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case model.Name:
			e.Name = v.(string)
		case model.Cron:
			e.Cron = v.(string)
		case model.Description:
			e.Description = v.(string)
		case model.ExecType:
			e.ExecType = v.(uint8)
		case model.ExecAt:
			e.ExecAt = v.(*time.Time)
		case model.Language:
			e.Language = v.(string)
		case model.Source:
			e.Source = v.(string)
		}
	}
}
