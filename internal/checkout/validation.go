package checkout

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"cedra_storefront/internal/orders"
)

// ShippingDetails est le formulaire de livraison, recopié tel quel dans la commande.
type ShippingDetails = orders.ShippingAddress

var (
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern   = regexp.MustCompile(`^[6-9]\d{9}$`)
	pincodePattern = regexp.MustCompile(`^\d{6}$`)
)

// ValidationError porte sur un champ précis du formulaire.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors liste les champs en erreur dans l'ordre du formulaire.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "formulaire invalide"
	}
	return v[0].Error()
}

func (v ValidationErrors) Unwrap() []error {
	out := make([]error, len(v))
	for i, e := range v {
		out[i] = e
	}
	return out
}

// Normalize retire les espaces superflus de chaque champ.
func Normalize(s ShippingDetails) ShippingDetails {
	s.FullName = strings.TrimSpace(s.FullName)
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	s.Phone = strings.TrimSpace(s.Phone)
	s.AddressLine = strings.TrimSpace(s.AddressLine)
	s.City = strings.TrimSpace(s.City)
	s.State = strings.TrimSpace(s.State)
	s.Pincode = strings.TrimSpace(s.Pincode)
	s.Landmark = strings.TrimSpace(s.Landmark)
	return s
}

// ValidateShipping retourne nil si le formulaire peut avancer.
func ValidateShipping(s ShippingDetails) ValidationErrors {
	var errs ValidationErrors
	add := func(field, msg string) {
		errs = append(errs, &ValidationError{Field: field, Message: msg})
	}

	if utf8.RuneCountInString(s.FullName) < 2 {
		add("full_name", "le nom doit contenir au moins 2 caractères")
	}
	if !emailPattern.MatchString(s.Email) {
		add("email", "adresse e-mail invalide")
	}
	if !phonePattern.MatchString(s.Phone) {
		add("phone", "numéro de mobile invalide (10 chiffres commençant par 6 à 9)")
	}
	if utf8.RuneCountInString(s.AddressLine) < 10 {
		add("address_line", "l'adresse doit contenir au moins 10 caractères")
	}
	if !validPincode(s.Pincode) {
		add("pincode", "code PIN invalide (6 chiffres)")
	}
	if s.City == "" {
		add("city", "ville requise")
	}
	if s.State == "" {
		add("state", "état requis")
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validPincode(p string) bool {
	if !pincodePattern.MatchString(p) {
		return false
	}
	n, err := strconv.Atoi(p)
	return err == nil && n >= 100000 && n <= 999999
}
