package http

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/hublend/hublend-settler/internal/config"
	"github.com/hublend/hublend-settler/internal/db"
	"github.com/hublend/hublend-settler/internal/registry"
	"github.com/hublend/hublend-settler/internal/state"
)

type HTTPServer interface {
	StartHTTPServer()
}

type HTTPServerImpl struct {
	state    *state.State
	registry *registry.Keeper
}

func NewHTTPServer(st *state.State, reg *registry.Keeper) *HTTPServerImpl {
	return &HTTPServerImpl{state: st, registry: reg}
}

func (hs *HTTPServerImpl) StartHTTPServer() {
	r := gin.Default()

	r.GET("/api/v1/status", hs.handleStatus)
	r.GET("/api/v1/locks/:intentId", hs.handleGetLock)
	r.GET("/api/v1/fills/:intentId", hs.handleGetFill)
	r.GET("/api/v1/deposits/:pendingId", hs.handleGetDeposit)

	admin := r.Group("/api/v1/admin", adminAuth())
	admin.POST("/assets", hs.handleUpsertAsset)
	admin.POST("/spoke-tokens", hs.handleUpsertSpokeToken)
	admin.POST("/routes", hs.handleUpsertRoute)
	admin.POST("/receivers", hs.handleUpsertReceiver)

	// Use configuration port
	addr := ":" + config.AppConfig.HTTPPort
	log.Infof("HTTP server is running on port %s", config.AppConfig.HTTPPort)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start HTTP server: %v", err)
	}
}

func (hs *HTTPServerImpl) handleStatus(c *gin.Context) {
	height, err := hs.state.GetSyncCheckpoint(db.SYNC_KIND_SPOKE)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"role":            config.AppConfig.Role,
		"hub_chain_id":    config.AppConfig.HubChainId,
		"last_sync_block": height,
	})
}

func (hs *HTTPServerImpl) handleGetLock(c *gin.Context) {
	id := common.HexToHash(c.Param("intentId"))
	lock, err := hs.state.GetLock(id.Hex())
	if err != nil {
		if err == state.ErrLockNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "lock not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": lock})
}

func (hs *HTTPServerImpl) handleGetFill(c *gin.Context) {
	id := common.HexToHash(c.Param("intentId"))
	fill, err := hs.state.GetFill(id.Hex())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "fill not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": fill})
}

func (hs *HTTPServerImpl) handleGetDeposit(c *gin.Context) {
	id := common.HexToHash(c.Param("pendingId"))
	pd, err := hs.state.GetPendingDeposit(id.Hex())
	if err != nil {
		if err == state.ErrPendingNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "pending deposit not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": pd})
}
