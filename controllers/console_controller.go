package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/cppla/ecorecycle/backend"
	"github.com/cppla/ecorecycle/console"
	"github.com/cppla/ecorecycle/middleware"
	"github.com/cppla/ecorecycle/utils"
)

const (
	streamBuffer       = 16
	streamWriteTimeout = 10 * time.Second
	streamPingPeriod   = 30 * time.Second
)

// Consoles hands out the console of a session.
type Consoles interface {
	Get(ctx context.Context, sess backend.Session) (*console.Console, error)
}

// ConsoleController serves the admin console of the signed-in session.
type ConsoleController struct {
	consoles Consoles
	upgrader websocket.Upgrader
}

func NewConsoleController(consoles Consoles) *ConsoleController {
	return &ConsoleController{
		consoles: consoles,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

func (cc *ConsoleController) console(ctx *gin.Context) (*console.Console, bool) {
	sess, _, ok := middleware.SessionFrom(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40102, "session required")
		return nil, false
	}
	c, err := cc.consoles.Get(ctx.Request.Context(), *sess)
	if err != nil {
		fail(ctx, err, nil)
		return nil, false
	}
	return c, true
}

func reply(ctx *gin.Context, snap console.Snapshot, err error) {
	if err != nil {
		fail(ctx, err, snap)
		return
	}
	utils.Success(ctx, snap)
}

// Show returns the latest render.
func (cc *ConsoleController) Show(ctx *gin.Context) {
	c, ok := cc.console(ctx)
	if !ok {
		return
	}
	utils.Success(ctx, c.Current())
}

// Filter sets the status filter; an empty status shows all.
func (cc *ConsoleController) Filter(ctx *gin.Context) {
	var req struct {
		Status string `json:"status" form:"status"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}
	c, ok := cc.console(ctx)
	if !ok {
		return
	}
	snap, err := c.SetFilter(req.Status)
	reply(ctx, snap, err)
}

// Search sets the search text.
func (cc *ConsoleController) Search(ctx *gin.Context) {
	var req struct {
		Text string `json:"text" form:"text"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}
	c, ok := cc.console(ctx)
	if !ok {
		return
	}
	utils.Success(ctx, c.SetSearch(req.Text))
}

// Refresh reloads the list from the backend.
func (cc *ConsoleController) Refresh(ctx *gin.Context) {
	c, ok := cc.console(ctx)
	if !ok {
		return
	}
	snap, err := c.Refresh(ctx.Request.Context())
	reply(ctx, snap, err)
}

// Detail returns the full view of one submission.
func (cc *ConsoleController) Detail(ctx *gin.Context) {
	c, ok := cc.console(ctx)
	if !ok {
		return
	}
	d, err := c.OpenDetail(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		fail(ctx, err, nil)
		return
	}
	utils.Success(ctx, d)
}

func (cc *ConsoleController) Accept(ctx *gin.Context) {
	c, ok := cc.console(ctx)
	if !ok {
		return
	}
	snap, err := c.Accept(ctx.Request.Context(), ctx.Param("id"))
	reply(ctx, snap, err)
}

func (cc *ConsoleController) Reject(ctx *gin.Context) {
	c, ok := cc.console(ctx)
	if !ok {
		return
	}
	snap, err := c.Reject(ctx.Request.Context(), ctx.Param("id"))
	reply(ctx, snap, err)
}

// Delete removes a submission; it needs ?confirm=true.
func (cc *ConsoleController) Delete(ctx *gin.Context) {
	c, ok := cc.console(ctx)
	if !ok {
		return
	}
	confirmed, _ := strconv.ParseBool(ctx.Query("confirm"))
	snap, err := c.Delete(ctx.Request.Context(), ctx.Param("id"), confirmed)
	reply(ctx, snap, err)
}

type daysRequest struct {
	Days int `json:"days" form:"days"`
}

// SetRetention schedules one submission's deletion.
func (cc *ConsoleController) SetRetention(ctx *gin.Context) {
	var req daysRequest
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40005, "Invalid days")
		return
	}
	c, ok := cc.console(ctx)
	if !ok {
		return
	}
	snap, err := c.SetRetention(ctx.Request.Context(), ctx.Param("id"), req.Days)
	reply(ctx, snap, err)
}

func (cc *ConsoleController) ClearRetention(ctx *gin.Context) {
	c, ok := cc.console(ctx)
	if !ok {
		return
	}
	snap, err := c.ClearRetention(ctx.Request.Context(), ctx.Param("id"))
	reply(ctx, snap, err)
}

// SetDefaultRetention changes the default used by later accepts.
func (cc *ConsoleController) SetDefaultRetention(ctx *gin.Context) {
	var req daysRequest
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40005, "Invalid days")
		return
	}
	c, ok := cc.console(ctx)
	if !ok {
		return
	}
	snap, err := c.SetDefaultRetention(ctx.Request.Context(), req.Days)
	reply(ctx, snap, err)
}

// Stream upgrades to a websocket and pushes every render of the session's
// console as JSON, starting with the current one. Renders are dropped when
// the client falls behind.
func (cc *ConsoleController) Stream(ctx *gin.Context) {
	c, ok := cc.console(ctx)
	if !ok {
		return
	}
	conn, err := cc.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		// Upgrade has already written the handshake error
		return
	}
	defer conn.Close()
	log := utils.Named("stream")

	snaps := make(chan console.Snapshot, streamBuffer)
	cancel := c.Watch(func(s console.Snapshot) {
		select {
		case snaps <- s:
		default:
			log.Warnw("stream client too slow, dropping render")
		}
	})
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		case s := <-snaps:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(s); err != nil {
				log.Debugw("stream write failed", "err", err)
				return
			}
		}
	}
}
