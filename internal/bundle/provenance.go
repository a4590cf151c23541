package bundle

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/conn-castle/dextctl/internal/messages"
)

var validate = validator.New()

// parseProvenance decodes and validates an install receipt.
func parseProvenance(data []byte) (*Provenance, error) {
	var p Provenance
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf(messages.BundleReceiptParseFmt, err)
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf(messages.BundleReceiptInvalidFmt, describeValidation(err))
	}
	return &p, nil
}

func describeValidation(err error) string {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return err.Error()
	}
	fe := fieldErrs[0]
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}
