package controllers

import (
	"net/http"

	"github.com/angelmondragon/testhub-backend/api/responses"
)

const welcomeMessage = "Welcome to the TestHub API!"

func Root() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteMessage(w, http.StatusOK, welcomeMessage)
	}
}
