package routes

import (
	"net/http"

	"settlement-service/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(router *gin.Engine, rc *controllers.RequestController) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": "settlement-service"})
	})

	router.POST("/requests", rc.CreateRequest)
	router.POST("/setup-intent", rc.SetupIntent)
	router.POST("/payment-method", rc.AttachPaymentMethod)
	router.POST("/gigs", rc.CreateGig)

	router.GET("/settlements/log", rc.GetSettlementLogs)
}
