// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package rest serves morphology measurements over HTTP.
package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mlnoga/nightmorph/internal/fits"
	"github.com/mlnoga/nightmorph/internal/morph"
	"github.com/rs/zerolog"
)

// Creates the API router. Requests measure with the given context and, unless they carry
// their own, the given configuration.
func NewRouter(c *morph.Context, cfg *morph.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(c.Log))
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/morph", postMorph(c, cfg))
		}
	}
	return r
}

// Listens and serves the API on the given address
func Serve(addr string, c *morph.Context, cfg *morph.Config) error {
	gin.SetMode(gin.ReleaseMode)
	c.Log.Info().Str("addr", addr).Msg("serving")
	return NewRouter(c, cfg).Run(addr)
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().Str("method", c.Request.Method).Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).Dur("elapsed", time.Since(start)).Msg("request")
	}
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

type postMorphArgs struct {
	Image    string        `json:"image" binding:"required"`
	Segmap   string        `json:"segmap" binding:"required"`
	Mask     string        `json:"mask"`
	Variance string        `json:"variance"`
	Label    int32         `json:"label"` // 0 measures all labels
	Config   *morph.Config `json:"config"`
}

func postMorph(mc *morph.Context, defaults *morph.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var args postMorphArgs
		if err := c.ShouldBindJSON(&args); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cfg := defaults
		if args.Config != nil {
			cfg = args.Config
		}
		if err := cfg.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if args.Label < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "label must not be negative"})
			return
		}

		in, err := fits.LoadInput(args.Image, args.Segmap, args.Mask, args.Variance, mc.Log)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var labels []int32
		if args.Label > 0 {
			labels = []int32{args.Label}
		}
		results, err := morph.Batch(in, cfg, mc, labels...)
		if results == nil {
			results = []*morph.Result{}
		}
		res := gin.H{"results": results}
		if err != nil {
			res["error"] = err.Error()
			if len(results) == 0 {
				c.JSON(http.StatusUnprocessableEntity, res)
				return
			}
		}
		c.JSON(http.StatusOK, res)
	}
}
