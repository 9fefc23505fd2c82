package http

import (
	"github.com/gin-gonic/gin"

	"github.com/swapmesh/route-resolver/internal/http/httputil"
	"github.com/swapmesh/route-resolver/internal/services/resolver"
)

type ChainsHandler struct {
	resolverSvc *resolver.Service
}

func NewChainsHandler(resolverSvc *resolver.Service) *ChainsHandler {
	return &ChainsHandler{resolverSvc: resolverSvc}
}

func (h *ChainsHandler) Root() string {
	return "/chains"
}

func (h *ChainsHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.listChains)
}

// ChainInfo describes one supported chain
type ChainInfo struct {
	ID            uint64   `json:"id" example:"137"`
	Name          string   `json:"name" example:"polygon"`
	WrappedNative string   `json:"wrappedNative" example:"0x0d500b1d8e8ef31e21c99d1db9a6444d3adf1270"`
	Venues        []string `json:"venues"`
	Bridgeable    []string `json:"bridgeable,omitempty"`
}

// listChains godoc
// @Summary      List supported chains
// @Description  Returns the chains, venues and bridgeable symbols the engine is configured for.
// @Tags         chains
// @Produce      json
// @Success      200  {object}  httputil.Response{data=[]ChainInfo}
// @Router       /chains [get]
func (h *ChainsHandler) listChains(c *gin.Context) {
	entries := h.resolverSvc.Chains()
	out := make([]ChainInfo, 0, len(entries))
	for _, e := range entries {
		venues := make([]string, 0, len(e.Venues))
		for _, v := range e.Venues {
			venues = append(venues, v.ID)
		}
		out = append(out, ChainInfo{
			ID:            e.ID,
			Name:          e.Name,
			WrappedNative: e.WrappedNative.Address,
			Venues:        venues,
			Bridgeable:    e.Bridgeable,
		})
	}
	httputil.Success(c, out)
}
