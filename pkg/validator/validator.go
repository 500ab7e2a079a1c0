package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// WalletUnset is stored when a user has not linked a Hedera account.
const WalletUnset = "unset"

var (
	handlePattern = regexp.MustCompile(`^@[A-Za-z0-9_]{1,15}$`)
	walletPattern = regexp.MustCompile(`^0\.0\.[0-9]+$`)
)

// NormalizeHandle trims, prefixes "@" when missing and lower-cases an X handle.
// It is idempotent.
func NormalizeHandle(raw string) string {
	h := strings.TrimSpace(raw)
	if h == "" {
		return ""
	}
	if !strings.HasPrefix(h, "@") {
		h = "@" + h
	}
	return strings.ToLower(h)
}

func IsValidHandle(handle string) bool {
	return handlePattern.MatchString(handle)
}

func IsValidWallet(wallet string) bool {
	return walletPattern.MatchString(wallet)
}

// NormalizeWallet maps an empty value to WalletUnset.
func NormalizeWallet(raw string) string {
	w := strings.TrimSpace(raw)
	if w == "" || strings.EqualFold(w, WalletUnset) {
		return WalletUnset
	}
	return w
}

// HasWallet reports whether the stored wallet value points at a real account.
func HasWallet(wallet string) bool {
	return wallet != "" && wallet != WalletUnset && IsValidWallet(wallet)
}

// RegisterCustomValidations installs the xhandle and hederawallet tags on
// gin's binding validator.
func RegisterCustomValidations() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding validator engine %T", binding.Validator.Engine())
	}
	return Register(v)
}

func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("xhandle", func(fl validator.FieldLevel) bool {
		return IsValidHandle(NormalizeHandle(fl.Field().String()))
	}); err != nil {
		return err
	}

	return v.RegisterValidation("hederawallet", func(fl validator.FieldLevel) bool {
		w := NormalizeWallet(fl.Field().String())
		return w == WalletUnset || IsValidWallet(w)
	})
}

func FormatValidationError(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var messages []string
		for _, fieldError := range validationErrors {
			message := getFieldErrorMessage(fieldError)
			messages = append(messages, message)
		}
		return strings.Join(messages, "; ")
	}
	return err.Error()
}

func getFieldErrorMessage(fe validator.FieldError) string {
	field := getFieldName(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Type().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Type().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "xhandle":
		return fmt.Sprintf("%s must be an X handle like @name (letters, digits, underscore, max 15)", field)
	case "hederawallet":
		return fmt.Sprintf("%s must be a Hedera account id like 0.0.12345", field)
	case "gtfield":
		return fmt.Sprintf("%s must be after %s", field, getFieldName(fe.Param()))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func getFieldName(field string) string {
	fieldNames := map[string]string{
		"Handle":     "Handle",
		"Password":   "Password",
		"Wallet":     "Wallet",
		"Text":       "Announcement",
		"StartDate":  "Start date",
		"EndDate":    "End date",
		"Date":       "Date",
		"Multiplier": "Multiplier",
		"TokenID":    "Token id",
		"ItemID":     "Item id",
	}

	if name, ok := fieldNames[field]; ok {
		return name
	}
	return field
}
