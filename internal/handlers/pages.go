package handlers

import (
	"net/http"

	"github.com/a-h/templ"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/web"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

// HomePage renders the landing page
func (h *Handler) HomePage(w http.ResponseWriter, r *http.Request) {
	var info *models.ModelInfo
	if set, err := h.registry.Current(); err == nil {
		i := set.Info()
		info = &i
	}
	templ.Handler(web.Home(info)).ServeHTTP(w, r)
}

// PredictPage renders the prediction form
func (h *Handler) PredictPage(w http.ResponseWriter, r *http.Request) {
	templ.Handler(web.Predict()).ServeHTTP(w, r)
}

// AboutPage renders the about page
func (h *Handler) AboutPage(w http.ResponseWriter, r *http.Request) {
	templ.Handler(web.About()).ServeHTTP(w, r)
}
