package web

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/deemkeen/stegofed/activitypub"
	"github.com/deemkeen/stegofed/util"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Federation is the part of the engine the HTTP surface talks to
type Federation interface {
	HandleInbox(w http.ResponseWriter, r *http.Request, username string)
	Cache() *activitypub.ProfileCache
	Config() activitypub.Config
}

// Router builds the public HTTP surface. stop ends the rate limiter sweepers.
func Router(conf *util.AppConfig, fed Federation, store Store, stop <-chan struct{}) *gin.Engine {
	// Set Gin to use the same log writer as the rest of the application
	gin.DefaultWriter = util.GetLogWriter()
	gin.DefaultErrorWriter = util.GetLogWriter()

	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	go globalLimiter.RunCleanup(stop)
	g.Use(RateLimitMiddleware(globalLimiter))

	g.GET("/metrics", gin.WrapH(promhttp.Handler()))

	g.GET("/.well-known/nodeinfo", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", GetWellKnownNodeInfo(conf))
	})

	g.GET("/nodeinfo/2.0", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", GetNodeInfo20(store, conf))
	})

	g.GET("/users/:username/feed.rss", func(c *gin.Context) {
		err, rss := GetRSS(store, fed.Cache(), fed.Config(), c.Param("username"))
		if err != nil {
			c.Render(http.StatusNotFound, render.String{Format: ""})
			return
		}
		c.Data(http.StatusOK, "application/xml; charset=utf-8", rss)
	})

	if !conf.Conf.WithAp {
		return g
	}

	// Stricter rate limit for ActivityPub endpoints: 5 req/sec per IP
	apLimiter := NewRateLimiter(rate.Limit(5), 10)
	go apLimiter.RunCleanup(stop)

	// Max 1MB request body size for ActivityPub activities
	maxBodySize := MaxBytesMiddleware(1 * 1024 * 1024)

	g.POST("/inbox", RateLimitMiddleware(apLimiter), maxBodySize, func(c *gin.Context) {
		fed.HandleInbox(c.Writer, c.Request, "")
	})

	g.POST("/users/:username/inbox", RateLimitMiddleware(apLimiter), maxBodySize, func(c *gin.Context) {
		username := c.Param("username")
		log.Printf("POST /users/%s/inbox", username)
		fed.HandleInbox(c.Writer, c.Request, username)
	})

	g.GET("/users/:username", func(c *gin.Context) {
		err, actor := GetActor(store, fed.Cache(), fed.Config(), c.Param("username"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.Data(http.StatusOK, activityJSON, actor)
	})

	g.GET("/users/:username/followers", func(c *gin.Context) {
		serveCollection(c, store, fed.Config(), "followers")
	})

	g.GET("/users/:username/following", func(c *gin.Context) {
		serveCollection(c, store, fed.Config(), "following")
	})

	g.GET("/posts/:id", func(c *gin.Context) {
		postId, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Invalid post ID"})
			return
		}
		err, note := GetPostObject(store, fed.Config(), postId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
			return
		}
		c.Data(http.StatusOK, activityJSON, note)
	})

	g.GET("/.well-known/webfinger", func(c *gin.Context) {
		resource := c.Query("resource")
		if !strings.HasPrefix(resource, "acct:") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
			return
		}
		username := strings.TrimPrefix(resource, "acct:")
		username = strings.TrimSuffix(username, fmt.Sprintf("@%s", fed.Config().Domain))
		err, doc := GetWebfinger(store, fed.Config(), username)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
			return
		}
		c.Data(http.StatusOK, "application/jrd+json; charset=utf-8", doc)
	})

	return g
}

func serveCollection(c *gin.Context, store Store, conf activitypub.Config, kind string) {
	username := c.Param("username")
	err, doc := GetCollection(store, conf, username, kind, c.Query("page") != "")
	if err != nil {
		log.Printf("Failed to get %s of %s: %v", kind, username, err)
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.Data(http.StatusOK, activityJSON, doc)
}
