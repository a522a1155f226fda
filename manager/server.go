package manager

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/hewudi666/maro/types"
)

// PolicyServer is an HTTP facade over a policy manager: rollout
// producers push experience to it and pull updated policy state from it.
// Update is single-writer, so inbound experience posts are serialized.
type PolicyServer struct {
	manager PolicyManager
	server  *http.Server

	// serializes Update calls from concurrent requests
	updateLock sync.Mutex
}

func NewPolicyServer(addr string, m PolicyManager) *PolicyServer {
	s := &PolicyServer{
		manager: m,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/version", s.handleVersion)
	r.GET("/state", s.handleState)
	r.POST("/experience", s.handleExperience)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Start serves until Shutdown is called
func (s *PolicyServer) Start() error {
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *PolicyServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *PolicyServer) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": s.manager.Version()})
}

func (s *PolicyServer) handleState(c *gin.Context) {
	since := -1
	if raw, ok := c.GetQuery("since"); ok {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to parse since version"})
			return
		}
		since = parsed
	}
	// a round can commit between the two manager reads; retry until the
	// version and the states belong to the same snapshot
	for {
		version := s.manager.Version()
		states := s.manager.GetState(since)
		if s.manager.Version() == version {
			c.JSON(http.StatusOK, gin.H{
				"version": version,
				"states":  states,
			})
			return
		}
	}
}

type experienceRequest struct {
	Experiences map[string]*types.ExperienceBatch `json:"experiences"`
}

func (s *PolicyServer) handleExperience(c *gin.Context) {
	req := experienceRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to unmarshal request"})
		return
	}

	s.updateLock.Lock()
	err := s.manager.Update(c.Request.Context(), req.Experiences)
	s.updateLock.Unlock()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": s.manager.Version()})
}
