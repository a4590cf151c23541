package activation

import (
	"github.com/conn-castle/dextctl/internal/fault"
	"github.com/conn-castle/dextctl/internal/messages"
)

// OSSystemExtensionError codes reported by the registrar.
const (
	registrarUnknown                    = 1
	registrarMissingEntitlement         = 2
	registrarUnsupportedParentLocation  = 3
	registrarExtensionNotFound          = 4
	registrarExtensionMissingIdentifier = 5
	registrarDuplicateIdentifier        = 6
	registrarUnknownExtensionCategory   = 7
	registrarCodeSignatureInvalid       = 8
	registrarValidationFailed           = 9
	registrarForbiddenBySystemPolicy    = 10
	registrarRequestCanceled            = 11
	registrarRequestSuperseded          = 12
	registrarAuthorizationRequired      = 13
)

type mapping struct {
	code         fault.Code
	state        State
	instructions string
}

var registrarCodes = map[int]mapping{
	registrarMissingEntitlement:         {code: fault.CodeMissingEntitlement, state: StateFailed},
	registrarUnsupportedParentLocation:  {code: fault.CodeDeveloperModeRequired, state: StateRequiresUserAction, instructions: messages.ActivationLocationInstructions},
	registrarExtensionNotFound:          {code: fault.CodeValidationFailed, state: StateFailed},
	registrarExtensionMissingIdentifier: {code: fault.CodeValidationFailed, state: StateFailed},
	registrarDuplicateIdentifier:        {code: fault.CodeDuplicateIdentifier, state: StateFailed},
	registrarUnknownExtensionCategory:   {code: fault.CodeValidationFailed, state: StateFailed},
	registrarCodeSignatureInvalid:       {code: fault.CodeInvalidSignature, state: StateFailed},
	registrarValidationFailed:           {code: fault.CodeValidationFailed, state: StateFailed},
	registrarForbiddenBySystemPolicy:    {code: fault.CodeForbiddenByPolicy, state: StateFailed},
	registrarRequestCanceled:            {code: fault.CodeCanceled, state: StateFailed},
	registrarRequestSuperseded:          {code: fault.CodeSuperseded, state: StateFailed},
	registrarAuthorizationRequired:      {code: fault.CodeUnauthorized, state: StateRequiresUserAction, instructions: messages.ActivationApproveInstructions},
}

// mapRegistrarCode translates a registrar failure code. Unlisted codes map to unknown.
func mapRegistrarCode(code int) mapping {
	if m, ok := registrarCodes[code]; ok {
		return m
	}
	return mapping{code: fault.CodeUnknown, state: StateFailed}
}
