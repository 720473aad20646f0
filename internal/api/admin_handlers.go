package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/annel0/blockguard/internal/api/replay"
	"github.com/annel0/blockguard/internal/eventbus"
	"github.com/annel0/blockguard/internal/guard"
	"github.com/annel0/blockguard/internal/middleware"
	"github.com/gin-gonic/gin"
)

// ToggleRequest включает или выключает переключатель
type ToggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// StateResponse содержит текущие административные переключатели
type StateResponse struct {
	ActivityHalt     bool     `json:"activity_halt"`
	FireSpreadHalted []string `json:"fire_spread_halted"`
}

func (rs *RestServer) stateResponse() StateResponse {
	s := rs.pipeline.State().Export()
	halted := s.FireSpreadHalted
	if halted == nil {
		halted = []string{}
	}
	return StateResponse{ActivityHalt: s.ActivityHalt, FireSpreadHalted: halted}
}

// publishToggle сообщает подписчикам шины об изменении переключателей
func (rs *RestServer) publishToggle(c *gin.Context) {
	if rs.bus == nil {
		return
	}
	payload := struct {
		StateResponse
		By string `json:"by"`
	}{rs.stateResponse(), c.GetString(middleware.ContextUsername)}

	env, err := eventbus.NewEnvelope(guard.AuditSource, eventbus.TypeToggle, 5, payload)
	if err != nil {
		return
	}
	if err := rs.bus.Publish(context.Background(), env); err != nil {
		rs.logger.Warn("publish toggle: %v", err)
	}
}

func (rs *RestServer) handleGetState(c *gin.Context) {
	c.JSON(http.StatusOK, rs.stateResponse())
}

// handleHalt включает или снимает остановку всех природных процессов
func (rs *RestServer) handleHalt(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}

	rs.pipeline.State().SetActivityHalt(*req.Enabled)
	rs.logger.Info("🛑 activity halt=%v (by %s)", *req.Enabled, c.GetString(middleware.ContextUsername))
	rs.publishToggle(c)

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Переключатель обновлён", Data: rs.stateResponse()})
}

// handleFireSpread останавливает или возобновляет распространение огня в мире
func (rs *RestServer) handleFireSpread(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}

	world := c.Param("world")
	rs.pipeline.State().SetFireSpreadHalted(world, *req.Enabled)
	rs.logger.Info("🔥 fire spread halted=%v in %s (by %s)", *req.Enabled, world, c.GetString(middleware.ContextUsername))
	rs.publishToggle(c)

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Переключатель обновлён", Data: rs.stateResponse()})
}

// handleReload перечитывает конфигурацию миров
func (rs *RestServer) handleReload(c *gin.Context) {
	if rs.reloader == nil {
		c.JSON(http.StatusNotImplemented, GenericResponse{Success: false, Message: "Перезагрузка конфигурации недоступна"})
		return
	}
	res, err := rs.reloader.Reload()
	if err != nil {
		rs.logger.Error("reload failed: %v", err)
		c.JSON(http.StatusUnprocessableEntity, GenericResponse{Success: false, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Конфигурация перезагружена", Data: res})
}

func (rs *RestServer) handleGetPolicies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"worlds": rs.pipeline.Policies().Worlds()})
}

// handleGetPolicy возвращает действующий снимок политики мира.
// Для ненастроенного мира возвращаются значения по умолчанию.
func (rs *RestServer) handleGetPolicy(c *gin.Context) {
	world := c.Param("world")
	_, configured := rs.pipeline.Policies().Lookup(world)
	c.JSON(http.StatusOK, gin.H{
		"configured": configured,
		"policy":     rs.pipeline.Policies().Get(world),
		"toggles":    rs.pipeline.State().Snapshot(world),
	})
}

// handleStats возвращает статистику процесса и журнала запретов
func (rs *RestServer) handleStats(c *gin.Context) {
	data := gin.H{
		"process": rs.metrics.Snapshot(),
		"worlds":  len(rs.pipeline.Policies().Worlds()),
		"state":   rs.stateResponse(),
	}
	if rs.vetoes != nil {
		data["vetoes_total"] = rs.vetoes.Total()
	}
	if rs.bus != nil {
		data["eventbus"] = rs.bus.Metrics()
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Статистика сервера", Data: data})
}

func (rs *RestServer) vetoQuery(c *gin.Context) (replay.Query, bool) {
	if rs.vetoes == nil {
		c.JSON(http.StatusNotImplemented, GenericResponse{Success: false, Message: "Журнал запретов выключен"})
		return replay.Query{}, false
	}
	var q replay.Query
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверные параметры: " + err.Error()})
		return replay.Query{}, false
	}
	if q.Limit <= 0 || q.Limit > 1000 {
		q.Limit = 100
	}
	return q, true
}

// handleGetVetoes возвращает последние запреты под фильтром
func (rs *RestServer) handleGetVetoes(c *gin.Context) {
	q, ok := rs.vetoQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"vetoes": rs.vetoes.Query(q)})
}

func (rs *RestServer) handleVetoStats(c *gin.Context) {
	q, ok := rs.vetoQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rs.vetoes.Stats(q))
}

func (rs *RestServer) requireWebhooks(c *gin.Context) bool {
	if rs.webhooks == nil {
		c.JSON(http.StatusNotImplemented, GenericResponse{Success: false, Message: "Webhook'и выключены"})
		return false
	}
	return true
}

func webhookID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный ID webhook'а"})
		return 0, false
	}
	return id, true
}

func (rs *RestServer) handleGetOutboundWebhooks(c *gin.Context) {
	if !rs.requireWebhooks(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": rs.webhooks.GetWebhooks(), "event_types": WebhookEventTypes})
}

func (rs *RestServer) handleCreateOutboundWebhook(c *gin.Context) {
	if !rs.requireWebhooks(c) {
		return
	}
	var req OutboundWebhook
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат webhook'а: " + err.Error()})
		return
	}
	created := rs.webhooks.AddWebhook(req)
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Webhook создан", Data: created})
}

func (rs *RestServer) handleGetOutboundWebhook(c *gin.Context) {
	if !rs.requireWebhooks(c) {
		return
	}
	id, ok := webhookID(c)
	if !ok {
		return
	}
	webhook, found := rs.webhooks.GetWebhook(id)
	if !found {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: ErrWebhookNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, webhook)
}

func (rs *RestServer) handleDeleteOutboundWebhook(c *gin.Context) {
	if !rs.requireWebhooks(c) {
		return
	}
	id, ok := webhookID(c)
	if !ok {
		return
	}
	if !rs.webhooks.DeleteWebhook(id) {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: ErrWebhookNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Webhook удалён"})
}

func (rs *RestServer) handleTestOutboundWebhook(c *gin.Context) {
	if !rs.requireWebhooks(c) {
		return
	}
	id, ok := webhookID(c)
	if !ok {
		return
	}
	err := rs.webhooks.TestWebhook(id)
	switch {
	case errors.Is(err, ErrWebhookNotFound):
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: err.Error()})
	case err != nil:
		c.JSON(http.StatusBadGateway, GenericResponse{Success: false, Message: err.Error()})
	default:
		c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Тестовое событие доставлено"})
	}
}
