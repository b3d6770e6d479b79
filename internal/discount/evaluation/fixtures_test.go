package evaluation

import (
	"time"

	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/domain"
	requestdomain "github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
	"github.com/shopspring/decimal"
)

const (
	testDisc   int64 = 100
	testTm     int64 = 11
	testSn     int64 = 22
	testOffer  int64 = 500
	testAssign int64 = 9001
)

var (
	testCutoff     = time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	testAssignDate = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
)

func ptr[T any](v T) *T { return &v }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testConf() domain.Conf {
	return domain.Conf{
		DiscID:       testDisc,
		Duration:     ptr(6),
		OfferDiscAmt: dec("5"),
		AloDiscAmt:   dec("2"),
		OccSncode:    77,
		OccGlcode:    "GL-DISC",
		OccRemark:    "Dynamic discount",
		ValidFrom:    ptr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		ValidTo:      ptr(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func testOfferRow(offerID, tm, sn int64) domain.Offer {
	return domain.Offer{OfferID: offerID, DiscID: ptr(testDisc), TmCode: tm, SnCode: sn}
}

func testCandidate() domain.Candidate {
	return domain.Candidate{
		RequestID:   1,
		AssignID:    testAssign,
		AssignDate:  testAssignDate,
		DiscID:      testDisc,
		CustomerID:  42,
		CoID:        4200,
		PrgCode:     "PG1",
		TmCode:      testTm,
		OfferSncode: testSn,
		OfferStatus: domain.OfferStatusActive,
		OfferPrice:  dec("10"),
		AloPrice:    decimal.NewNullDecimal(dec("4")),
	}
}

func testContract() requestdomain.Contract {
	return requestdomain.Contract{
		RequestID:  1,
		PackID:     1,
		CustomerID: 42,
		CoID:       4200,
		Status:     requestdomain.ContractStatusInitial,
	}
}

func testRequest() requestdomain.Request {
	return requestdomain.Request{
		RequestID:         1,
		Status:            requestdomain.RequestStatusWorking,
		BillCycle:         "05",
		BillPeriodEndDate: testCutoff,
	}
}
