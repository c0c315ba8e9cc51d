package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the success body shared by every endpoint.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON writes a JSON response with the given status.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// OK writes a 200 envelope around data.
func OK(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, Envelope{Success: true, Data: data})
}

// Message writes a 200 envelope with a message and optional data.
func Message(c *gin.Context, message string, data interface{}) {
	JSON(c, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// Created writes a 201 envelope.
func Created(c *gin.Context, message string, data interface{}) {
	JSON(c, http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}
