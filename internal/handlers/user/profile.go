package user

import (
	"log"
	"net/http"

	"cedra_storefront/internal/checkout"
	"cedra_storefront/internal/middleware"
	"cedra_storefront/internal/profile"

	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	profiles *profile.Service
}

func NewProfileHandler(profiles *profile.Service) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// 🟢 GET /api/profile : coordonnées de livraison pré-remplies et leur provenance
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	identity := middleware.CurrentIdentity(c)
	if !identity.Valid() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "non authentifié"})
		return
	}

	shipping, source := h.profiles.Autofill(c.Request.Context(), identity)
	c.JSON(http.StatusOK, gin.H{"shipping": shipping, "source": source})
}

// 🟡 PUT /api/profile
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	identity := middleware.CurrentIdentity(c)
	if !identity.Valid() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "non authentifié"})
		return
	}

	var input checkout.ShippingDetails
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}
	input = checkout.Normalize(input)
	if errs := checkout.ValidateShipping(input); errs != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": errs.Error(), "code": "invalid_shipping", "fields": errs})
		return
	}

	saved, err := h.profiles.Save(c.Request.Context(), identity, input)
	if err != nil {
		log.Printf("❌ Sauvegarde du profil de %s: %v", identity.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur sauvegarde profil"})
		return
	}

	log.Printf("✅ Profil de %s mis à jour", identity.ID)
	c.JSON(http.StatusOK, gin.H{"profile": saved, "shipping": saved.Shipping()})
}
