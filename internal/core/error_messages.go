// Package core provides the business logic of the Trasporti backend.
//
// # Error Codes Reference
//
// This file maps technical errors to client-facing messages with codes for
// support reference. Clients receive the code in the "code" field of every
// JSON error body and can quote it when reporting a problem.
//
// Error codes are grouped by category:
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: a record with this key already exists
//	        Patterns: "duplicate key", "already exists"
//
//	DB004 - Connection refused: the database cannot be reached
//	        Patterns: "connection refused", "server selection"
//
//	DB005 - Connection reset: the database connection was interrupted
//	        Patterns: "connection reset"
//
//	DB006 - Timeout: the database did not answer in time
//	        Patterns: "timeout"
//
// # Record Errors (REC001-REC099)
//
//	REC001 - Not found: the record does not exist
//	         Patterns: "not found"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid date
//	         Patterns: "data non valida"
//
//	VAL002 - Invalid number
//	         Patterns: "numero non valido"
//
//	VAL003 - Invalid plate
//	         Patterns: "targa non valida"
//
//	VAL004 - Invalid value (nested objects, arrays)
//	         Patterns: "valore non valido"
//
//	VAL005 - Missing field
//	         Patterns: "obbligatorio"
//
//	VAL006 - Malformed JSON body
//	         Patterns: "invalid json", "cannot unmarshal"
//
//	VAL007 - Other field constraint (length, allowed values)
//	         Any ValidationError matching no pattern above; its own
//	         message is returned
//
// # Authentication Errors (AUTH001-AUTH099)
//
//	AUTH001 - Missing token
//	          Patterns: "token mancante"
//
//	AUTH002 - Invalid or expired token
//	          Patterns: "token non valido"
//
//	AUTH003 - Wrong credentials
//	          Patterns: "credenziali non valide"
//
//	AUTH004 - Insufficient role
//	          Patterns: "non autorizzato"
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Source spreadsheet missing
//	         Patterns: "source file not found"
//
//	IMP002 - Source spreadsheet empty
//	         Patterns: "source sheet is empty"
//
//	IMP003 - No recognized columns
//	         Patterns: "no allowed columns"
//
//	IMP004 - No store connection string
//	         Patterns: "no store connection string"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled
//	         Patterns: "context canceled"
//
//	REQ002 - Request timed out
//	         Patterns: "context deadline exceeded"
//
//	REQ003 - Body too large
//	         Patterns: "request body too large"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Too many requests
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check the server logs for the
// original error.
//
// # Pattern Matching
//
// Patterns are matched case-insensitively with strings.Contains. The first
// matching pattern wins, so more specific patterns come first.
package core

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides client-facing error information with guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user
// messages. Order matters: specific before general.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Request Errors (REQ001-REQ003)
	// Checked first: a cancelled context can surface inside driver errors
	// that also mention "timeout" or "connection".
	// =========================================================================
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Richiesta annullata",
			Action:  "Riprova",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Tempo della richiesta scaduto",
			Action:  "Riprova tra qualche istante",
			Code:    "REQ002",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "Corpo della richiesta troppo grande",
			Action:  "Invia al massimo 10 MB",
			Code:    "REQ003",
		},
	},

	// =========================================================================
	// Validation Errors (VAL001-VAL006)
	// =========================================================================
	{
		pattern: "data non valida",
		msg: UserMessage{
			Message: "Data non valida",
			Action:  "Usa il formato AAAA-MM-GG oppure GG/MM/AAAA",
			Code:    "VAL001",
		},
	},
	{
		pattern: "numero non valido",
		msg: UserMessage{
			Message: "Numero non valido",
			Action:  "Usa solo cifre, con virgola o punto per i decimali",
			Code:    "VAL002",
		},
	},
	{
		pattern: "targa non valida",
		msg: UserMessage{
			Message: "Targa non valida",
			Action:  "Usa da 1 a 20 lettere, cifre, spazi o trattini",
			Code:    "VAL003",
		},
	},
	{
		pattern: "valore non valido",
		msg: UserMessage{
			Message: "Valore non valido",
			Action:  "Invia solo testo, numeri o date",
			Code:    "VAL004",
		},
	},
	{
		pattern: "obbligatorio",
		msg: UserMessage{
			Message: "Campo obbligatorio mancante",
			Action:  "Compila tutti i campi richiesti",
			Code:    "VAL005",
		},
	},
	{
		pattern: "invalid json",
		msg: UserMessage{
			Message: "JSON non valido",
			Action:  "Controlla il corpo della richiesta",
			Code:    "VAL006",
		},
	},
	{
		pattern: "cannot unmarshal",
		msg: UserMessage{
			Message: "JSON non valido",
			Action:  "Controlla il corpo della richiesta",
			Code:    "VAL006",
		},
	},

	// =========================================================================
	// Authentication Errors (AUTH001-AUTH004)
	// =========================================================================
	{
		pattern: "token mancante",
		msg: UserMessage{
			Message: "Token mancante",
			Action:  "Effettua il login",
			Code:    "AUTH001",
		},
	},
	{
		pattern: "token non valido",
		msg: UserMessage{
			Message: "Token non valido",
			Action:  "Effettua di nuovo il login",
			Code:    "AUTH002",
		},
	},
	{
		pattern: "credenziali non valide",
		msg: UserMessage{
			Message: "Credenziali non valide",
			Action:  "Controlla utente e password",
			Code:    "AUTH003",
		},
	},
	{
		pattern: "non autorizzato",
		msg: UserMessage{
			Message: "Non autorizzato",
			Action:  "Serve un utente amministratore",
			Code:    "AUTH004",
		},
	},

	// =========================================================================
	// Import Errors (IMP001-IMP004)
	// =========================================================================
	{
		pattern: "source file not found",
		msg: UserMessage{
			Message: "File Excel non trovato",
			Action:  "Controlla il percorso in IMPORT_SOURCE",
			Code:    "IMP001",
		},
	},
	{
		pattern: "source sheet is empty",
		msg: UserMessage{
			Message: "Il foglio Excel è vuoto",
			Action:  "Il primo foglio deve avere intestazioni e almeno una riga",
			Code:    "IMP002",
		},
	},
	{
		pattern: "no allowed columns",
		msg: UserMessage{
			Message: "Nessuna colonna riconosciuta",
			Action:  "Le intestazioni devono corrispondere a IMPORT_ALLOWED_HEADERS",
			Code:    "IMP003",
		},
	},
	{
		pattern: "no store connection string",
		msg: UserMessage{
			Message: "Connessione al database non configurata",
			Action:  "Imposta DATABASE_URL o MONGO_URI",
			Code:    "IMP004",
		},
	},

	// =========================================================================
	// Record Errors (REC001)
	// =========================================================================
	{
		pattern: "not found",
		msg: UserMessage{
			Message: "Non trovato",
			Action:  "Il record potrebbe essere stato eliminato",
			Code:    "REC001",
		},
	},

	// =========================================================================
	// Database Errors (DB001-DB006)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "Elemento già esistente",
			Action:  "Usa un valore diverso",
			Code:    "DB001",
		},
	},
	{
		pattern: "already exists",
		msg: UserMessage{
			Message: "Elemento già esistente",
			Action:  "Usa un valore diverso",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Database non raggiungibile",
			Action:  "Riprova tra qualche istante",
			Code:    "DB004",
		},
	},
	{
		pattern: "server selection",
		msg: UserMessage{
			Message: "Database non raggiungibile",
			Action:  "Riprova tra qualche istante",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Connessione al database interrotta",
			Action:  "Riprova",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Il database non ha risposto in tempo",
			Action:  "Riprova tra qualche istante",
			Code:    "DB006",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Troppe richieste",
			Action:  "Attendi un momento prima di riprovare",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "Errore del server",
	Action:  "Riprova o contatta l'assistenza",
	Code:    "ERR000",
}

// MapError converts a technical error to a client-facing message. The
// first matching pattern wins; unknown errors map to ERR000.
//
// Example:
//
//	msg := MapError(store.ErrNotFound)
//	// msg.Code == "REC001"
//	// msg.Message == "Non trovato"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	var ve ValidationError
	if errors.As(err, &ve) {
		return UserMessage{
			Message: ve.Message,
			Action:  "Controlla i dati inviati",
			Code:    "VAL007",
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action" for CLI output.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern, as opposed to
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs) with its client message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // Client-facing message
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
