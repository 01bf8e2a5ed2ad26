package http

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hublend/hublend-settler/internal/config"
	"github.com/hublend/hublend-settler/internal/db"
	log "github.com/sirupsen/logrus"
)

// adminAuth verifies an HS256 bearer token. The subject claim must be
// the configured admin address when one is set.
func adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := config.AppConfig.AdminJwtSecret
		if secret == "" {
			log.Error("Admin endpoint called but no admin jwt secret configured")
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		header := c.GetHeader("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKey
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			log.Error("Admin JWT valid false")
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		if admin := config.AppConfig.AdminAddress; admin != (common.Address{}) {
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				c.AbortWithStatus(http.StatusUnauthorized)
				return
			}
			sub, _ := claims["sub"].(string)
			if common.HexToAddress(sub) != admin {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}
		c.Next()
	}
}

type assetRequest struct {
	Asset          string `json:"asset" binding:"required"`
	Decimals       uint8  `json:"decimals"`
	TotalLiquidity string `json:"total_liquidity" binding:"required"`
	Enabled        bool   `json:"enabled"`
}

func (hs *HTTPServerImpl) handleUpsertAsset(c *gin.Context) {
	var req assetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := hs.registry.UpsertHubAsset(&db.HubAsset{
		Asset:          common.HexToAddress(req.Asset).Hex(),
		Decimals:       req.Decimals,
		TotalLiquidity: req.TotalLiquidity,
		Enabled:        req.Enabled,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type spokeTokenRequest struct {
	ChainId  uint64 `json:"chain_id" binding:"required"`
	Token    string `json:"token" binding:"required"`
	HubAsset string `json:"hub_asset" binding:"required"`
	Decimals uint8  `json:"decimals"`
	Enabled  bool   `json:"enabled"`
}

func (hs *HTTPServerImpl) handleUpsertSpokeToken(c *gin.Context) {
	var req spokeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := hs.registry.UpsertSpokeToken(&db.SpokeToken{
		ChainId:  req.ChainId,
		Token:    common.HexToAddress(req.Token).Hex(),
		HubAsset: common.HexToAddress(req.HubAsset).Hex(),
		Decimals: req.Decimals,
		Enabled:  req.Enabled,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type routeRequest struct {
	HubAsset            string `json:"hub_asset" binding:"required"`
	DestChainId         uint64 `json:"dest_chain_id"`
	BridgePool          string `json:"bridge_pool" binding:"required"`
	CounterpartToken    string `json:"counterpart_token" binding:"required"`
	CounterpartReceiver string `json:"counterpart_receiver" binding:"required"`
	ExclusiveRelayer    string `json:"exclusive_relayer"`
	FillDeadlineBuffer  uint64 `json:"fill_deadline_buffer" binding:"required"`
	MaxQuoteAge         uint64 `json:"max_quote_age" binding:"required"`
	Enabled             bool   `json:"enabled"`
}

func (hs *HTTPServerImpl) handleUpsertRoute(c *gin.Context) {
	var req routeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := hs.registry.UpsertRoute(&db.Route{
		HubAsset:            common.HexToAddress(req.HubAsset).Hex(),
		DestChainId:         req.DestChainId,
		BridgePool:          common.HexToAddress(req.BridgePool).Hex(),
		CounterpartToken:    common.HexToAddress(req.CounterpartToken).Hex(),
		CounterpartReceiver: common.HexToAddress(req.CounterpartReceiver).Hex(),
		ExclusiveRelayer:    common.HexToAddress(req.ExclusiveRelayer).Hex(),
		FillDeadlineBuffer:  req.FillDeadlineBuffer,
		MaxQuoteAge:         req.MaxQuoteAge,
		Enabled:             req.Enabled,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type receiverRequest struct {
	ChainId  uint64 `json:"chain_id" binding:"required"`
	Receiver string `json:"receiver" binding:"required"`
	Attestor string `json:"attestor" binding:"required"`
}

func (hs *HTTPServerImpl) handleUpsertReceiver(c *gin.Context) {
	var req receiverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := hs.registry.UpsertSourceReceiver(&db.SourceReceiver{
		ChainId:  req.ChainId,
		Receiver: common.HexToAddress(req.Receiver).Hex(),
		Attestor: common.HexToAddress(req.Attestor).Hex(),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
