// Package artifacts declares the output contracts for every pipeline
// stage: test dimensions, scenario combinations, test cases, executable
// test steps and expected collateral results, plus the verifier verdict
// shapes. The field guidance doubles as the model-facing documentation
// of the collateral blocking and cash allocation domain.
package artifacts

import "github.com/jonathan/testing-assistant/internal/schema"

// DimensionList is the contract for extracted test dimensions.
func DimensionList() *schema.Contract {
	return &schema.Contract{
		Name:        "test_dimension_list",
		Description: "List of valid dimensions extracted from the requirements and their valid list of values.",
		Fields: []schema.Field{
			{Name: "output", Repeated: true, Guidance: "The extracted test dimensions.", Items: []schema.Field{
				{Name: "dim_id", Type: schema.TypeString, Guidance: "Unique identifier for the dimension. Numbering to be of the format TD-001, TD-002 etc."},
				{Name: "dimension", Type: schema.TypeString, Guidance: "The dimension name extracted from the requirements for which test cases have to be generated. Example: Allocation Level."},
				{Name: "description", Type: schema.TypeString, Guidance: "Description of the dimension and what it means."},
				{Name: "dim_type", Type: schema.TypeString, Guidance: "The type of dimension for testing purposes.", Enum: []string{"Core", "Independent", "Ancillary"}},
				{Name: "values", Repeated: true, Guidance: "The list of allowed values for this dimension.", Items: []schema.Field{
					{Name: "dim_val_id", Type: schema.TypeString, Guidance: "Unique id for the value within the dimension: the dimension id followed by a running number, e.g. values of TD-001 are TD-001-001, TD-001-002 and so on."},
					{Name: "dim_value", Type: schema.TypeString, Guidance: "The allowed value for the dimension. Use a consistent naming pattern."},
				}},
				{Name: "constraints", Repeated: true, Guidance: "The constraints to be applied to this dimension when combining its values with other dimensions to generate scenarios.", Items: []schema.Field{
					{Name: "const_id", Type: schema.TypeString, Guidance: "Unique id for the constraint: the dimension id plus -C-001, -C-002 etc."},
					{Name: "constraint", Type: schema.TypeString, Guidance: "The constraint to apply when generating combinations using this dimension's values."},
				}},
				{Name: "note", Type: schema.TypeString, Guidance: "Any notes that will be useful for the combination generation process later."},
			}},
		},
	}
}

// DimensionVerification is the verdict contract for the dimensions stage.
func DimensionVerification() *schema.Contract {
	return &schema.Contract{
		Name: "test_dimension_verification",
		Fields: []schema.Field{
			{Name: "overall_score", Type: schema.TypeInteger, Guidance: "A score out of 100 for the correctness of the test dimensions."},
			{Name: "rationale", Type: schema.TypeString, Guidance: "The reasons for providing this score, and what reduced it."},
		},
	}
}

// ScenarioList is the contract for dimension combination sets.
func ScenarioList() *schema.Contract {
	return &schema.Contract{
		Name:        "test_combo_list",
		Description: "All test combination sets derived from the dimensions.",
		Fields: []schema.Field{
			{Name: "output", Repeated: true, Guidance: "The test combination sets.", Items: []schema.Field{
				{Name: "combo_id", Type: schema.TypeString, Guidance: "Unique identifier for the combination following the SC-001, SC-002 pattern."},
				{Name: "combo_description", Repeated: true, Guidance: "The combination values of dimensions.", Items: []schema.Field{
					{Name: "dimension", Type: schema.TypeString, Guidance: "Dimension applicable. Use consistent naming throughout."},
					{Name: "value", Type: schema.TypeString, Guidance: "Value applicable to the dimension. Use consistent naming throughout."},
				}},
				{Name: "criticality", Type: schema.TypeString, Enum: []string{"HIGH", "MEDIUM", "LOW"},
					Guidance: "Criticality of the combination for test coverage. HIGH is absolutely critical to test, MEDIUM is important but less critical, LOW matters little for the general functioning of the application. No other value may be provided."},
				{Name: "traceability", Type: schema.TypeString, Guidance: "Comma separated references to the requirements from which the combination is derived."},
			}},
		},
	}
}

// ScenarioVerification is the verdict contract for the scenarios stage.
func ScenarioVerification() *schema.Contract {
	return &schema.Contract{
		Name: "test_combo_verification",
		Fields: []schema.Field{
			{Name: "overall_score", Type: schema.TypeInteger, Guidance: "A score out of 100 for the correctness of the test combinations."},
		},
	}
}

// CaseList is the contract for test cases generated from one scenario.
func CaseList() *schema.Contract {
	return &schema.Contract{
		Name: "test_case_list",
		Fields: []schema.Field{
			{Name: "output", Repeated: true, Guidance: "The test cases for the given scenario.", Items: []schema.Field{
				{Name: "test_scenario_id", Type: schema.TypeString, Guidance: "Reference to the combo id from the test scenarios input. Acts as a trace back to the scenario."},
				{Name: "test_case_id", Type: schema.TypeString, Guidance: "A unique id for the test case, of the format TC-0001, TC-0002 etc."},
				{Name: "test_description", Type: schema.TypeString, Guidance: "Describes the test case in detail, primarily covering overall scenario, MLN cash and non-cash coverage, compliance requirement coverage and capital cushion coverage."},
				{Name: "key_validation", Type: schema.TypeString, Guidance: "The key validations for this test case as bullet points prefixed by *."},
				{Name: "segment_scope", Type: schema.TypeString, Guidance: "Whether a single segment or multiple segments are involved."},
				{Name: "order", Type: schema.TypeString, Guidance: "Whether the allocation runs Forward (priority order) or Reverse (reverse priority order)."},
				{Name: "test_steps", Repeated: true, Guidance: "The sequence of steps that can truly verify the test case. Use all applicable collateral types as per the static data so there is good coverage of relevant collateral types.", Items: []schema.Field{
					{Name: "step", Type: schema.TypeInteger, Guidance: "The step number in the sequence of steps to be executed."},
					{Name: "collateralGroup", Repeated: true, ItemType: schema.TypeString, Guidance: "The collateral groups to be used for this test case."},
					{Name: "collateralComponent", Type: schema.TypeString, Guidance: "The collateral component to be used for this test case."},
					{Name: "isFungible", Repeated: true, ItemType: schema.TypeString, Guidance: "The different fungibility of collaterals used for this test case."},
				}},
				{Name: "memberCode", Type: schema.TypeString, Guidance: "Member code from the masters data for whom the test case is generated. Do not repeat member codes, each test case needs a unique one."},
			}},
		},
	}
}

// CaseVerification is the verdict contract for the cases stage.
func CaseVerification() *schema.Contract {
	return &schema.Contract{
		Name: "test_case_verification",
		Fields: []schema.Field{
			{Name: "overall_score", Type: schema.TypeInteger, Guidance: "A score out of 100 for the correctness of the test cases."},
		},
	}
}

// StepList is the contract for executable collateral transaction steps.
func StepList() *schema.Contract {
	return &schema.Contract{
		Name:        "test_case_steps",
		Description: "Steps for the given test case. Generate the steps as described in the transaction sequence and nothing else.",
		Fields: []schema.Field{
			{Name: "output", Repeated: true, Guidance: "The executable test steps.", Items: []schema.Field{
				{Name: "test_case_id", Type: schema.TypeString, Guidance: "The test case id for which these steps are generated. Acts as the traceability."},
				{Name: "step", Type: schema.TypeInteger, Guidance: "The step number in the sequence of steps to be executed."},
				{Name: "memberCode", Type: schema.TypeString, Guidance: "A running series starting at A001 and continuing A002, A003 etc."},
				{Name: "segment", Type: schema.TypeString, Guidance: "Segment in which the collateral is transacted. Use the segment codes available in static data such as CM, FNO."},
				{Name: "addReduce", Type: schema.TypeString, Guidance: "Whether collateral is being added or reduced."},
				{Name: "collateralType", Type: schema.TypeString, Guidance: "The code for the type of collateral. Use only Code values defined under Tag ID 14 in rd_tag_value in the static data as applicable."},
				{Name: "event", Type: schema.TypeString, Guidance: "The type of transaction, e.g. Deposit, Withdraw, Invoke, Transfer, Renew, Allocation. Use a suitable event in this format."},
				{Name: "collateralGroup", Type: schema.TypeString, Guidance: "The collateral group this collateral type belongs to. Use the code as available in the static data."},
				{Name: "collateralComponent", Type: schema.TypeString, Guidance: "The collateral component this collateral type belongs to. Use the code as available in the static data."},
				{Name: "isFungible", Type: schema.TypeString, Guidance: "Whether the collateral is fungible across segments. Cash and FD are always fungible. 'True' for fungible, 'False' for non-fungible."},
				{Name: "currency", Type: schema.TypeString, Guidance: "Always set to INR."},
				{Name: "amount", Type: schema.TypeNumber, Guidance: "The amount of the transaction. For a Renew event this is the renewal amount. For securities with quantity and price this is quantity * price."},
				{Name: "amountInWords", Type: schema.TypeString, Guidance: "The transaction amount in words."},
				{Name: "bank", Type: schema.TypeString, Guidance: "Always set to IDFC. Applicable for cash, fixed deposits and bank guarantees."},
				{Name: "account", Type: schema.TypeString, Guidance: "Suitable bank account from the masters data (Member Bank Account) based on the chosen member code."},
				{Name: "instrumentNo", Type: schema.TypeInteger, Guidance: "Random 6 digit number for fixed deposits and bank guarantees, empty for cash. For a renewal this is the old instrument number."},
				{Name: "branch", Type: schema.TypeString, Guidance: "Only for fixed deposit and bank guarantee transactions: a random city in India. Empty for cash."},
				{Name: "isElectronic", Type: schema.TypeString, Guidance: "Only for fixed deposit and bank guarantee transactions. Always False."},
				{Name: "quantity", Type: schema.TypeInteger, Guidance: "Only for securities including G-Secs, 0 for others."},
				{Name: "isin", Type: schema.TypeString, Guidance: "Only for securities including G-Secs, empty for others. Picked from the master data provided."},
				{Name: "price", Type: schema.TypeNumber, Guidance: "Only for securities including G-Secs, 0 for others. Picked from the master data provided."},
				{Name: "value", Type: schema.TypeNumber, Guidance: "Only for securities including G-Secs, 0 for others. Quantity * price, the value used for blocking."},
				{Name: "newInstrumentNo", Type: schema.TypeInteger, Guidance: "Only when the event is Renewal: a random 6 digit number for fixed deposits and bank guarantees, empty for cash."},
				{Name: "toSegment", Type: schema.TypeString, Guidance: "Segment the collateral is transferred to, only for transfer events. Use segment codes from the static data such as CM, FNO. Does not apply to transfer of allocation."},
				{Name: "allocation", Repeated: true, Guidance: "Only when the event is Allocation, empty otherwise. Holds Allocation, De-allocation and Transfer lines; the allocation process considers every line and allocates cash where applicable per the rules given.", Items: []schema.Field{
					{Name: "step", Type: schema.TypeInteger, Guidance: "The same step number as the test case step in which the allocation data is generated."},
					{Name: "cmCode", Type: schema.TypeString, Guidance: "The clearing member code."},
					{Name: "segment", Type: schema.TypeString, Guidance: "Segment in which the allocation is created. Use segment codes from static data such as CM, FNO."},
					{Name: "tmCode", Type: schema.TypeString, Guidance: "The trading member code."},
					{Name: "cpCode", Type: schema.TypeString, Guidance: "The custodial participant code."},
					{Name: "cliCode", Type: schema.TypeString, Guidance: "The client code."},
					{Name: "txn_type", Type: schema.TypeString, Guidance: "One of four values: Allocate, De-allocate, Transfer In, Transfer Out."},
					{Name: "amt", Type: schema.TypeNumber, Guidance: "The transaction amount. Allocation and Transfer In are positive, De-allocation and Transfer Out are negative."},
					{Name: "cum_amt", Type: schema.TypeNumber, Guidance: "The cumulative allocation outstanding after the transaction, taking allocation transactions in previous steps into account."},
					{Name: "trfToSeg", Type: schema.TypeString, Guidance: "The segment the allocation is transferred to."},
					{Name: "pass_fail", Type: schema.TypeString, Guidance: "Whether the given allocation passes or fails."},
					{Name: "reason", Type: schema.TypeString, Guidance: "If the allocation fails, a short reason in less than 20 words."},
				}},
				{Name: "pass_fail", Type: schema.TypeString, Guidance: "Whether the overall allocation passes or fails."},
				{Name: "reason", Type: schema.TypeString, Guidance: "If the allocation fails, a short reason in less than 20 words."},
			}},
		},
	}
}

// StepVerification is the verdict contract for the steps stage.
func StepVerification() *schema.Contract {
	return &schema.Contract{
		Name: "test_step_verification",
		Fields: []schema.Field{
			{Name: "overall_score", Type: schema.TypeInteger, Guidance: "A score out of 100 for the correctness of the test steps."},
		},
	}
}

// ExpectedResult is the contract for the collateral summary after one
// test step. Each output line is the unique combination of the key
// fields, and the amounts follow the allocation waterfall: the total
// collateral covers MLN first, then compliance, capital cushion and
// payin obligations, then priority-ordered allocations, with whatever
// remains left unallocated.
func ExpectedResult() *schema.Contract {
	return &schema.Contract{
		Name: "expected_result",
		Fields: []schema.Field{
			{Name: "output", Repeated: true, Guidance: "One line per unique combination of the key fields, showing how collateral is distributed across requirements and purposes.", Items: []schema.Field{
				{Name: "step", Type: schema.TypeInteger, Guidance: "Key field: processing step number in the collateral allocation workflow, the sequential order in which this allocation was processed."},
				{Name: "memberCode", Type: schema.TypeString, Guidance: "Key field: the clearing member who owns this collateral. A running series starting at A001, A002 etc."},
				{Name: "segmentGroup", Type: schema.TypeString, Guidance: "Key field: high-level grouping of market segments, e.g. Equity, Derivatives, Currency."},
				{Name: "segment", Type: schema.TypeString, Guidance: "Key field: the specific market segment where the collateral is utilized. Use the same codes as the static data in rd_tag_value."},
				{Name: "purposeOfDeposit", Type: schema.TypeString, Guidance: "Key field: always set to COLLATERAL in this context."},
				{Name: "collateralGroup", Type: schema.TypeString, Guidance: "Key field: high-level classification of the collateral type, e.g. CASH, SECURITIES, COMMODITIES. Use the same codes as the static data in rd_tag_value."},
				{Name: "collateralComponent", Type: schema.TypeString, Guidance: "Key field: specific sub-type of the collateral, more granular than the group, e.g. CASH, CASHEQUIVALENT, NONCASH. Use the same codes as the static data in rd_tag_value."},
				{Name: "isFungible", Type: schema.TypeString, Guidance: "Key field: 'True' when the collateral can be lent or borrowed between segments (cash and FD always are), 'False' when segment-specific."},
				{Name: "currency", Type: schema.TypeString, Guidance: "Key field: currency denomination of the collateral. Always INR."},
				{Name: "applicable_limits", Type: schema.TypeString, Guidance: "The applicable MLN, compliance requirement and capital cushion limits for this line based on the member and segment per the master data."},
				{Name: "totalCollateralAmount", Type: schema.TypeNumber, Guidance: "Starting amount: total collateral available in this line before any allocation. Equals the sum of all blocked, lent minus borrowed, allocated and unallocated amounts below."},
				{Name: "mlnBlockedAmount", Type: schema.TypeNumber, Guidance: "Amount blocked from this specific line to meet MLN requirements. Takes priority in the waterfall. Reflects only this line's contribution, not the segment total, and excludes amounts borrowed from other segments."},
				{Name: "mlnLentAmount", Type: schema.TypeNumber, Guidance: "Amount lent from this line to other segments for their MLN needs. Only applicable for fungible collateral with excess after its own MLN needs."},
				{Name: "mlnBorrowedAmount", Type: schema.TypeNumber, Guidance: "Amount borrowed by this line from other segments for MLN needs. Only for fungible collateral. A borrowed amount appears under the borrowing segment's keys even when that segment held none of this collateral before."},
				{Name: "obComplianceAmount", Type: schema.TypeNumber, Guidance: "Amount blocked for regulatory compliance obligations. Applied only after MLN requirements are fully met."},
				{Name: "obCapitalCushionAmount", Type: schema.TypeNumber, Guidance: "Amount blocked for the capital buffer. Applied only after MLN and compliance are fully satisfied."},
				{Name: "obPayinAdjustmentAmount", Type: schema.TypeNumber, Guidance: "Amount blocked for settlement and payin adjustments. Lowest priority in the obligation waterfall."},
				{Name: "obPayinLent", Type: schema.TypeNumber, Guidance: "Amount lent from this line to other segments for payin adjustments. Only for fungible collateral with excess after all obligations."},
				{Name: "obPayinBorrowed", Type: schema.TypeNumber, Guidance: "Amount borrowed by this line from other segments for payin adjustments."},
				{Name: "allocated", Type: schema.TypeNumber, Guidance: "Filled from the allocation details in the test steps, each line allocated individually in priority order. Only granted when the requested amount is no more than the unallocated amount at the time, no partial allocation. Reduces the unallocated amount."},
				{Name: "allocatedLent", Type: schema.TypeNumber, Guidance: "Allocation capacity lent from this line to other segments. Only for fungible collateral types."},
				{Name: "allocatedBorrowed", Type: schema.TypeNumber, Guidance: "Allocation capacity borrowed by this line from other segments with excess after their own trading needs."},
				{Name: "unallocated", Type: schema.TypeNumber, Guidance: "Final remainder after all obligations and allocations: total collateral minus all blocked and allocated amounts. Never negative."},
			}},
			{Name: "reason", Type: schema.TypeString, Guidance: "Description of why this is the expected result."},
		},
	}
}

// OutputVerification is the boolean-style verdict contract for the
// expected results stage. A negative verdict carries the correction
// that is folded into the next draft.
func OutputVerification() *schema.Contract {
	return &schema.Contract{
		Name: "test_output_verification",
		Fields: []schema.Field{
			{Name: "correctness", Type: schema.TypeBoolean, Guidance: "Indicates if the output is correct or not."},
			{Name: "correction", Type: schema.TypeString, Guidance: "If incorrect, explain what is wrong. Keep it empty if the result is correct."},
		},
	}
}
