package api

import (
	"errors"
	"net/http"

	"github.com/annel0/blockguard/internal/guard"
	"github.com/gin-gonic/gin"
)

// GuardResponse представляет ответ моста: вердикт, сообщения игроку и событие после проверки
type GuardResponse struct {
	Verdict  guard.Verdict `json:"verdict"`
	Messages []string      `json:"messages,omitempty"`
	Event    guard.Event   `json:"event"`
}

func (rs *RestServer) handleCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": guard.Categories})
}

// decodeBridgeEvent проверяет подпись тела и разбирает событие категории из URL
func (rs *RestServer) decodeBridgeEvent(c *gin.Context) (guard.Event, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Не удалось прочитать тело запроса"})
		return nil, false
	}
	if !VerifySignature(body, c.GetHeader(SignatureHeader), rs.bridgeSecret) {
		c.JSON(http.StatusUnauthorized, GenericResponse{Success: false, Message: "Неверная подпись запроса"})
		return nil, false
	}

	ev, err := guard.DecodeEvent(guard.Category(c.Param("category")), body)
	if errors.Is(err, guard.ErrUnknownCategory) {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: err.Error()})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: err.Error()})
		return nil, false
	}
	return ev, true
}

// handleGuard проверяет событие и применяет результат (отмена, аудит, губки)
func (rs *RestServer) handleGuard(c *gin.Context) {
	ev, ok := rs.decodeBridgeEvent(c)
	if !ok {
		return
	}

	var messages guard.Collector
	v, err := rs.pipeline.HandleWith(ev, &messages)
	if err != nil {
		rs.logger.Error("guard %s failed: %v", ev.Category(), err)
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, GuardResponse{Verdict: v, Messages: messages.Messages(), Event: ev})
}

// handleEvaluate проверяет событие без применения результата
func (rs *RestServer) handleEvaluate(c *gin.Context) {
	ev, ok := rs.decodeBridgeEvent(c)
	if !ok {
		return
	}

	v, err := rs.pipeline.Evaluate(ev)
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, GuardResponse{Verdict: v, Event: ev})
}
