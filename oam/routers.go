// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

package oam

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/logger"
	utilLogger "github.com/omec-project/util/logger"
)

// Route is the information for every URI.
type Route struct {
	// Name is the name of this Route.
	Name string
	// Method is the string for the HTTP method. ex) GET, POST etc..
	Method string
	// Pattern is the pattern of the URI.
	Pattern string
	// HandlerFunc is the handler function of this route.
	HandlerFunc gin.HandlerFunc
}

// Routes is the list of the generated Route.
type Routes []Route

// NewRouter returns a new router serving the OAM API of mme.
func NewRouter(mme *context.MmeContext) *gin.Engine {
	router := utilLogger.NewGinWithZap(logger.GinLog)
	AddService(router, NewApi(mme))

	router.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "User-Agent", "Referrer", "Host", "Token", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		AllowAllOrigins:  true,
		MaxAge:           86400,
	}))

	return router
}

func AddService(engine *gin.Engine, api *Api) *gin.RouterGroup {
	group := engine.Group("/mme-oam/v1")

	for _, route := range api.routes() {
		switch route.Method {
		case "GET":
			group.GET(route.Pattern, route.HandlerFunc)
		case "DELETE":
			group.DELETE(route.Pattern, route.HandlerFunc)
		case "POST":
			group.POST(route.Pattern, route.HandlerFunc)
		}
	}
	return group
}

// Index is the index handler.
func Index(c *gin.Context) {
	c.String(http.StatusOK, "Hello World!")
}

func (a *Api) routes() Routes {
	return Routes{
		{
			"Index",
			"GET",
			"/",
			Index,
		},
		{
			"Registered UE Context",
			"GET",
			"/registered-ue-context",
			a.HTTPRegisteredUEContext,
		},
		{
			"Individual Registered UE Context",
			"GET",
			"/registered-ue-context/:imsi",
			a.HTTPRegisteredUEContext,
		},
		{
			"Purge UE Context",
			strings.ToUpper("Delete"),
			"/purge-ue-context/:imsi",
			a.HTTPPurgeUEContext,
		},
		{
			"Active UE List",
			strings.ToUpper("get"),
			"/active-ues",
			a.HTTPGetActiveUes,
		},
	}
}
