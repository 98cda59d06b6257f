package invoices

// User-facing rule messages, shared between creation checks and the
// pre-submission validation so the two paths report identical text.
const (
	msgSupplierRequired      = "Fornecedor é obrigatório"
	msgInvoiceNumberRequired = "Nº de Fatura é obrigatório"
	msgInvoiceDateRequired   = "Data da Fatura é obrigatória"
	msgTotalRequired         = "Total é obrigatório"
	msgAttachmentRequired    = "Documento é obrigatório"
	msgInvoiceDateInvalid    = "Data da Fatura inválida"
	msgDueDateInvalid        = "Data de Vencimento inválida"
	msgTotalNegative         = "Total não pode ser negativo"
)

// ValidateForSubmission checks the rules an invoice must satisfy before it
// can be submitted. Every violated rule is reported at once; a zero total is
// valid, only an absent one is rejected.
func ValidateForSubmission(in SubmissionCheck) ValidationResult {
	var errs []string

	if in.SupplierID == "" {
		errs = append(errs, msgSupplierRequired)
	}
	if in.InvoiceNumber == "" {
		errs = append(errs, msgInvoiceNumberRequired)
	}
	if in.InvoiceDate == nil || in.InvoiceDate.IsZero() {
		errs = append(errs, msgInvoiceDateRequired)
	}
	if in.TotalAmount == nil {
		errs = append(errs, msgTotalRequired)
	}
	if in.Attachment == nil {
		errs = append(errs, msgAttachmentRequired)
	}

	return ValidationResult{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}
