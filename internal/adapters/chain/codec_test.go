package chain

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/onchainbill/collector/internal/domain/models"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec()
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

func TestEncodeApproveSelector(t *testing.T) {
	c := newTestCodec(t)

	spender := common.HexToAddress("0x4444444444444444444444444444444444444444")
	data, err := c.EncodeApprove(spender, big.NewInt(5000000))
	if err != nil {
		t.Fatalf("EncodeApprove: %v", err)
	}

	if !bytes.Equal(data[:4], selector("approve(address,uint256)")) {
		t.Errorf("selector = %x", data[:4])
	}
	if len(data) != 4+32+32 {
		t.Errorf("calldata length = %d, want 68", len(data))
	}
}

func TestEncodeChargeSelector(t *testing.T) {
	c := newTestCodec(t)

	payer := common.HexToAddress("0x1111111111111111111111111111111111111111")
	data, err := c.EncodeCharge(payer)
	if err != nil {
		t.Fatalf("EncodeCharge: %v", err)
	}

	if !bytes.Equal(data[:4], selector("charge(address)")) {
		t.Errorf("selector = %x", data[:4])
	}
}

func TestSingleDefaultModeIsAllZero(t *testing.T) {
	for i, b := range SingleDefaultMode {
		if b != 0 {
			t.Fatalf("mode byte %d = %x, want 0", i, b)
		}
	}
}

func TestEncodeSingleExecutionLayout(t *testing.T) {
	target := common.HexToAddress("0x5555555555555555555555555555555555555555")
	calldata := []byte{0xde, 0xad, 0xbe, 0xef}

	packed := EncodeSingleExecution(models.Execution{
		Target:   target,
		Value:    big.NewInt(7),
		Calldata: calldata,
	})

	if len(packed) != 20+32+4 {
		t.Fatalf("packed length = %d, want 56", len(packed))
	}
	if !bytes.Equal(packed[:20], target.Bytes()) {
		t.Errorf("target bytes = %x", packed[:20])
	}
	wantValue, _ := hex.DecodeString("0000000000000000000000000000000000000000000000000000000000000007")
	if !bytes.Equal(packed[20:52], wantValue) {
		t.Errorf("value bytes = %x", packed[20:52])
	}
	if !bytes.Equal(packed[52:], calldata) {
		t.Errorf("calldata bytes = %x", packed[52:])
	}
}

func TestEncodeSingleExecutionNilValue(t *testing.T) {
	packed := EncodeSingleExecution(models.Execution{
		Target: common.HexToAddress("0x5555555555555555555555555555555555555555"),
	})

	if len(packed) != 52 {
		t.Fatalf("packed length = %d, want 52", len(packed))
	}
	for _, b := range packed[20:52] {
		if b != 0 {
			t.Fatal("nil value must encode as zero")
		}
	}
}

func testDelegation() *models.Delegation {
	return &models.Delegation{
		Delegate:  common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Delegator: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Authority: models.RootAuthority,
		Caveats: []models.Caveat{
			{Enforcer: common.HexToAddress("0x3333333333333333333333333333333333333333"), Terms: []byte{0x8f, 0xe1, 0x23, 0xd7}},
		},
		Salt:      big.NewInt(1760357528892),
		Signature: []byte{0x1b, 0x2c, 0x3d},
	}
}

func TestEncodeRedemptionSelectorAndRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	redemptions := []models.Redemption{
		{
			Delegation: testDelegation(),
			Execution: models.Execution{
				Target:   common.HexToAddress("0x5555555555555555555555555555555555555555"),
				Calldata: []byte{0x01},
			},
		},
		{
			Delegation: testDelegation(),
			Execution: models.Execution{
				Target:   common.HexToAddress("0x4444444444444444444444444444444444444444"),
				Calldata: []byte{0x02},
			},
		},
	}

	data, err := c.EncodeRedemption(redemptions)
	if err != nil {
		t.Fatalf("EncodeRedemption: %v", err)
	}

	if !bytes.Equal(data[:4], selector("redeemDelegations(bytes[],bytes32[],bytes[])")) {
		t.Errorf("selector = %x", data[:4])
	}

	// Both pairs must survive an unpack of the outer call
	values, err := c.delegationManager.Methods["redeemDelegations"].Inputs.Unpack(data[4:])
	if err != nil {
		t.Fatalf("unpack redeemDelegations: %v", err)
	}
	contexts := values[0].([][]byte)
	modes := values[1].([][32]byte)
	executions := values[2].([][]byte)

	if len(contexts) != 2 || len(modes) != 2 || len(executions) != 2 {
		t.Fatalf("lengths = %d/%d/%d, want 2/2/2", len(contexts), len(modes), len(executions))
	}
	for i, m := range modes {
		if m != SingleDefaultMode {
			t.Errorf("mode %d = %x, want single-default", i, m)
		}
	}
	if executions[0][52] != 0x01 || executions[1][52] != 0x02 {
		t.Error("execution calldata order not preserved")
	}
}

func TestEncodeRedemptionEmptyRejects(t *testing.T) {
	c := newTestCodec(t)
	if _, err := c.EncodeRedemption(nil); err == nil {
		t.Fatal("empty redemption batch must reject")
	}
}

func TestEncodePermissionContextNilSaltRejects(t *testing.T) {
	c := newTestCodec(t)
	d := testDelegation()
	d.Salt = nil
	if _, err := c.EncodePermissionContext(d); err == nil {
		t.Fatal("nil salt must reject")
	}
}

func TestGetPlanRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	calldata, err := c.EncodeGetPlan(7)
	if err != nil {
		t.Fatalf("EncodeGetPlan: %v", err)
	}
	if !bytes.Equal(calldata[:4], selector("getPlan(uint256)")) {
		t.Errorf("selector = %x", calldata[:4])
	}

	token := common.HexToAddress("0x5555555555555555555555555555555555555555")
	ret, err := c.subscription.Methods["getPlan"].Outputs.Pack(
		big.NewInt(5000000), big.NewInt(2592000), true, token,
	)
	if err != nil {
		t.Fatalf("pack outputs: %v", err)
	}

	plan, err := c.DecodeGetPlan(ret)
	if err != nil {
		t.Fatalf("DecodeGetPlan: %v", err)
	}
	if plan.Price.Int64() != 5000000 || plan.Period != 2592000 || !plan.Active || plan.Token != token {
		t.Errorf("plan = %+v", plan)
	}
}

func TestIsPaymentDueRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	ret, err := c.subscription.Methods["isPaymentDue"].Outputs.Pack(true, big.NewInt(1790000000))
	if err != nil {
		t.Fatalf("pack outputs: %v", err)
	}

	due, next, err := c.DecodeIsPaymentDue(ret)
	if err != nil {
		t.Fatalf("DecodeIsPaymentDue: %v", err)
	}
	if !due || next != 1790000000 {
		t.Errorf("due=%v next=%d", due, next)
	}
}
