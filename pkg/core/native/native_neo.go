package native

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/neoref/neoref/pkg/config"
	"github.com/neoref/neoref/pkg/core/dao"
	"github.com/neoref/neoref/pkg/core/interop"
	"github.com/neoref/neoref/pkg/core/interop/runtime"
	istorage "github.com/neoref/neoref/pkg/core/interop/storage"
	"github.com/neoref/neoref/pkg/core/native/nativenames"
	"github.com/neoref/neoref/pkg/core/storage"
	"github.com/neoref/neoref/pkg/crypto/hash"
	"github.com/neoref/neoref/pkg/crypto/keys"
	"github.com/neoref/neoref/pkg/encoding/bigint"
	"github.com/neoref/neoref/pkg/smartcontract"
	"github.com/neoref/neoref/pkg/smartcontract/callflag"
	"github.com/neoref/neoref/pkg/smartcontract/manifest"
	"github.com/neoref/neoref/pkg/util"
	"github.com/neoref/neoref/pkg/vm/stackitem"
)

// NEO represents the governance token contract.
type NEO struct {
	nep17TokenNative
	GAS *GAS

	cfg config.ProtocolConfiguration
}

const (
	neoContractID = -5
	// NEOTotalSupply is the total amount of NEO in the system.
	NEOTotalSupply = 100000000
	// DefaultRegisterPrice is the default price for candidate register.
	DefaultRegisterPrice = 1000 * 100000000
	// neoHolderRewardRatio is a percent of generated GAS that is
	// distributed to NEO holders.
	neoHolderRewardRatio = 10
	// committeeRewardRatio is a percent of generated GAS that is
	// distributed to committee.
	committeeRewardRatio = 10

	// prefixCandidate is a prefix used to store validator's data.
	prefixCandidate = 33
	// prefixGASPerBlock is a prefix used to store amount of GAS
	// generated per block.
	prefixGASPerBlock = 29
	// effectiveVoterTurnout represents the minimal ratio of total supply
	// to total amount of votes to use the elected candidates.
	effectiveVoterTurnout = 5
)

var (
	// keyVotersCount is a key used to store the summarized amount of
	// NEO on voting accounts.
	keyVotersCount = []byte{1}
	// keyRegisterPrice is a key used to store the price for candidate
	// registration.
	keyRegisterPrice = []byte{13}
)

// neoBalance represents the NEO balance state: the balance itself, the
// height it was last modified at and the vote target.
type neoBalance struct {
	Balance       big.Int
	BalanceHeight uint32
	VoteTo        *keys.PublicKey
}

// candidate represents a candidate state: registration flag and votes.
type candidate struct {
	Registered bool
	Votes      big.Int
}

func newNEO(cfg config.ProtocolConfiguration) *NEO {
	n := &NEO{cfg: cfg}
	defer n.Finalize()

	nep17 := newNEP17Native(nativenames.Neo, neoContractID)
	nep17.symbol = "NEO"
	nep17.decimals = 0
	nep17.factor = 1
	nep17.incBalance = n.increaseBalance
	nep17.balFromBytes = n.balanceFromBytes
	n.nep17TokenNative = *nep17

	desc := newDescriptor("unclaimedGas", smartcontract.IntegerType,
		manifest.NewParameter("account", smartcontract.Hash160Type),
		manifest.NewParameter("end", smartcontract.IntegerType))
	md := newMethodAndPrice(n.unclaimedGas, 1<<17, callflag.ReadStates)
	n.AddMethod(md, desc)

	desc = newDescriptor("registerCandidate", smartcontract.BoolType,
		manifest.NewParameter("pubkey", smartcontract.PublicKeyType))
	md = newMethodAndPrice(n.registerCandidate, 0, callflag.States)
	n.AddMethod(md, desc)

	desc = newDescriptor("unregisterCandidate", smartcontract.BoolType,
		manifest.NewParameter("pubkey", smartcontract.PublicKeyType))
	md = newMethodAndPrice(n.unregisterCandidate, 1<<16, callflag.States)
	n.AddMethod(md, desc)

	desc = newDescriptor("vote", smartcontract.BoolType,
		manifest.NewParameter("account", smartcontract.Hash160Type),
		manifest.NewParameter("voteTo", smartcontract.PublicKeyType))
	md = newMethodAndPrice(n.vote, 1<<16, callflag.States)
	n.AddMethod(md, desc)

	desc = newDescriptor("getCandidates", smartcontract.ArrayType)
	md = newMethodAndPrice(n.getCandidatesCall, 1<<22, callflag.ReadStates)
	n.AddMethod(md, desc)

	desc = newDescriptor("getAllCandidates", smartcontract.InteropInterfaceType)
	md = newMethodAndPrice(n.getAllCandidatesCall, 1<<22, callflag.ReadStates)
	n.AddMethod(md, desc)

	desc = newDescriptor("getCandidateVote", smartcontract.IntegerType,
		manifest.NewParameter("pubKey", smartcontract.PublicKeyType))
	md = newMethodAndPrice(n.getCandidateVoteCall, 1<<15, callflag.ReadStates)
	n.AddMethod(md, desc)

	desc = newDescriptor("getAccountState", smartcontract.ArrayType,
		manifest.NewParameter("account", smartcontract.Hash160Type))
	md = newMethodAndPrice(n.getAccountState, 1<<15, callflag.ReadStates)
	n.AddMethod(md, desc)

	desc = newDescriptor("getCommittee", smartcontract.ArrayType)
	md = newMethodAndPrice(n.getCommittee, 1<<22, callflag.ReadStates)
	n.AddMethod(md, desc)

	desc = newDescriptor("getCommitteeAddress", smartcontract.Hash160Type)
	md = newMethodAndPrice(n.getCommitteeAddress, 1<<22, callflag.ReadStates)
	n.AddMethod(md, desc)

	desc = newDescriptor("getNextBlockValidators", smartcontract.ArrayType)
	md = newMethodAndPrice(n.getNextBlockValidators, 1<<16, callflag.ReadStates)
	n.AddMethod(md, desc)

	desc = newDescriptor("getGasPerBlock", smartcontract.IntegerType)
	md = newMethodAndPrice(n.getGASPerBlock, 1<<15, callflag.ReadStates)
	n.AddMethod(md, desc)

	desc = newDescriptor("setGasPerBlock", smartcontract.VoidType,
		manifest.NewParameter("gasPerBlock", smartcontract.IntegerType))
	md = newMethodAndPrice(n.setGASPerBlock, 1<<15, callflag.States)
	n.AddMethod(md, desc)

	desc = newDescriptor("getRegisterPrice", smartcontract.IntegerType)
	md = newMethodAndPrice(n.getRegisterPrice, 1<<15, callflag.ReadStates)
	n.AddMethod(md, desc)

	desc = newDescriptor("setRegisterPrice", smartcontract.VoidType,
		manifest.NewParameter("registerPrice", smartcontract.IntegerType))
	md = newMethodAndPrice(n.setRegisterPrice, 1<<15, callflag.States)
	n.AddMethod(md, desc)

	n.AddEvent(nil, "CandidateStateChanged",
		manifest.NewParameter("pubkey", smartcontract.PublicKeyType),
		manifest.NewParameter("registered", smartcontract.BoolType),
		manifest.NewParameter("votes", smartcontract.IntegerType),
	)
	n.AddEvent(nil, "Vote",
		manifest.NewParameter("account", smartcontract.Hash160Type),
		manifest.NewParameter("from", smartcontract.PublicKeyType),
		manifest.NewParameter("to", smartcontract.PublicKeyType),
		manifest.NewParameter("amount", smartcontract.IntegerType),
	)

	return n
}

// Metadata implements the Contract interface.
func (n *NEO) Metadata() *interop.ContractMD {
	return &n.ContractMD
}

// ActiveIn implements the Contract interface.
func (n *NEO) ActiveIn() *config.Hardfork {
	return nil
}

// Initialize implements the Contract interface.
func (n *NEO) Initialize(ic *interop.Context, hf *config.Hardfork) error {
	if hf != nil {
		return nil
	}
	setIntWithKey(n.ID, ic.DAO, keyVotersCount, 0)
	setIntWithKey(n.ID, ic.DAO, keyRegisterPrice, DefaultRegisterPrice)
	n.putGASRecord(ic.DAO, 0, 5*GASFactor)

	committee, err := n.standbyCommittee()
	if err != nil && len(n.cfg.StandbyCommittee) > 0 {
		return err
	}
	if len(committee) > 0 {
		addr, err := committeeAddress(committee)
		if err != nil {
			return err
		}
		n.mint(ic, addr, big.NewInt(NEOTotalSupply), false)
	}
	return nil
}

// OnPersist implements the Contract interface.
func (n *NEO) OnPersist(ic *interop.Context) error {
	return nil
}

// PostPersist mints the committee reward for the persisted block.
func (n *NEO) PostPersist(ic *interop.Context) error {
	if ic.Block == nil {
		return nil
	}
	committee, err := n.ComputeCommitteeMembers(ic.DAO)
	if err != nil || len(committee) == 0 {
		return nil
	}
	gasPerBlock := n.getGASPerBlockInternal(ic.DAO, ic.Block.Index)
	index := int(ic.Block.Index) % len(committee)
	reward := new(big.Int).Mul(gasPerBlock, big.NewInt(committeeRewardRatio))
	reward.Div(reward, big.NewInt(100))
	n.GAS.mint(ic, committee[index].GetScriptHash(), reward, false)
	return nil
}

func (n *NEO) increaseBalance(ic *interop.Context, h util.Uint160, si []byte, amount *big.Int, checkBal *big.Int) (func(), error) {
	acc, err := n.balanceStateFromBytes(si)
	if err != nil {
		return nil, err
	}
	if amount.Sign() == -1 && acc.Balance.CmpAbs(amount) == -1 {
		return nil, errors.New("insufficient funds")
	}
	if checkBal != nil && acc.Balance.Cmp(checkBal) < 0 && amount.Sign() <= 0 && checkBal.Sign() > 0 {
		return nil, errors.New("insufficient funds")
	}

	// Distribute the accumulated GAS before the balance changes.
	gen, err := n.calculateBonus(ic.DAO, &acc.Balance, acc.BalanceHeight, ic.BlockHeight())
	if err != nil {
		return nil, err
	}
	postF := func() { n.GAS.mint(ic, h, gen, true) }

	if acc.VoteTo != nil {
		if err := n.modifyVotes(ic.DAO, acc.VoteTo, amount); err != nil {
			return nil, err
		}
		votersCount := getIntWithKey(n.ID, ic.DAO, keyVotersCount)
		setIntWithKey(n.ID, ic.DAO, keyVotersCount, votersCount+amount.Int64())
	}

	acc.Balance.Add(&acc.Balance, amount)
	acc.BalanceHeight = ic.BlockHeight()
	if acc.Balance.Sign() != 0 {
		ic.DAO.PutStorageItem(n.ID, n.makeAccountKey(h), n.balanceStateToBytes(acc))
	} else {
		ic.DAO.DeleteStorageItem(n.ID, n.makeAccountKey(h))
	}
	return postF, nil
}

func (n *NEO) balanceFromBytes(si []byte) (*big.Int, error) {
	acc, err := n.balanceStateFromBytes(si)
	if err != nil {
		return nil, err
	}
	return &acc.Balance, nil
}

func (n *NEO) balanceStateFromBytes(si []byte) (*neoBalance, error) {
	acc := new(neoBalance)
	if len(si) == 0 {
		return acc, nil
	}
	item, err := stackitem.Deserialize(si)
	if err != nil {
		return nil, err
	}
	str, ok := item.Value().([]stackitem.Item)
	if !ok || len(str) < 3 {
		return nil, errors.New("invalid balance state")
	}
	bal, err := str[0].TryInteger()
	if err != nil {
		return nil, err
	}
	acc.Balance = *bal
	h, err := str[1].TryInteger()
	if err != nil {
		return nil, err
	}
	acc.BalanceHeight = uint32(h.Int64())
	if _, ok := str[2].(stackitem.Null); !ok {
		b, err := str[2].TryBytes()
		if err != nil {
			return nil, err
		}
		acc.VoteTo = new(keys.PublicKey)
		if err := acc.VoteTo.DecodeBytes(b); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func (n *NEO) balanceStateToBytes(acc *neoBalance) []byte {
	var vote stackitem.Item = stackitem.Null{}
	if acc.VoteTo != nil {
		vote = stackitem.NewByteArray(acc.VoteTo.Bytes())
	}
	it := stackitem.NewStruct([]stackitem.Item{
		stackitem.NewBigInteger(&acc.Balance),
		stackitem.Make(acc.BalanceHeight),
		vote,
	})
	data, err := stackitem.Serialize(it)
	if err != nil {
		panic(err)
	}
	return data
}

// calculateBonus computes the amount of GAS generated for holding value
// NEO between start and end blocks.
func (n *NEO) calculateBonus(d *dao.Simple, value *big.Int, start, end uint32) (*big.Int, error) {
	if value.Sign() == 0 || start >= end {
		return big.NewInt(0), nil
	}
	if value.Sign() < 0 {
		return nil, errors.New("negative value")
	}
	var sum = big.NewInt(0)
	var records []gasRecord
	d.Seek(n.ID, storage.SeekRange{Prefix: []byte{prefixGASPerBlock}}, func(k, v []byte) bool {
		records = append(records, gasRecord{
			Index:       uint32(k[1])<<24 | uint32(k[2])<<16 | uint32(k[3])<<8 | uint32(k[4]),
			GasPerBlock: *bigint.FromBytes(v),
		})
		return true
	})
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Index >= end {
			continue
		}
		tillTop := end
		if i+1 < len(records) && records[i+1].Index < end {
			tillTop = records[i+1].Index
		}
		from := records[i].Index
		if from < start {
			from = start
		}
		if from < tillTop {
			blocks := big.NewInt(int64(tillTop - from))
			sum.Add(sum, new(big.Int).Mul(&records[i].GasPerBlock, blocks))
		}
		if records[i].Index <= start {
			break
		}
	}
	res := new(big.Int).Mul(value, sum)
	res.Mul(res, big.NewInt(neoHolderRewardRatio))
	res.Div(res, big.NewInt(100*NEOTotalSupply))
	return res, nil
}

type gasRecord struct {
	Index       uint32
	GasPerBlock big.Int
}

func (n *NEO) unclaimedGas(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	u := toUint160(args[0])
	end := toUint32(args[1])
	gen, err := n.CalculateBonus(ic.DAO, u, end)
	if err != nil {
		panic(err)
	}
	return stackitem.NewBigInteger(gen)
}

// Mint mints NEO directly, it's used by state-setup tooling and the
// genesis block only.
func (n *NEO) Mint(ic *interop.Context, h util.Uint160, amount *big.Int) {
	n.mint(ic, h, amount, false)
}

// IterateBalances iterates over all NEO balances in the storage.
func (n *NEO) IterateBalances(d *dao.Simple, f func(h util.Uint160, b *big.Int) bool) {
	d.Seek(n.ID, storage.SeekRange{Prefix: []byte{prefixAccount}}, func(k, v []byte) bool {
		h, err := util.Uint160DecodeBytesBE(k[1:])
		if err != nil {
			return true
		}
		acc, err := n.balanceStateFromBytes(v)
		if err != nil {
			return true
		}
		return f(h, &acc.Balance)
	})
}

// CalculateBonus computes the unclaimed GAS for the given account as of
// the end block.
func (n *NEO) CalculateBonus(d *dao.Simple, acc util.Uint160, endHeight uint32) (*big.Int, error) {
	key := n.makeAccountKey(acc)
	si := d.GetStorageItem(n.ID, key)
	if si == nil {
		return big.NewInt(0), nil
	}
	st, err := n.balanceStateFromBytes(si)
	if err != nil {
		return nil, err
	}
	return n.calculateBonus(d, &st.Balance, st.BalanceHeight, endHeight)
}

func (n *NEO) registerCandidate(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	pub := toPublicKey(args[0])
	ok, err := runtime.CheckKeyedWitness(ic, pub)
	if err != nil {
		panic(err)
	} else if !ok {
		return stackitem.NewBool(false)
	}
	if !ic.VM.AddGas(getIntWithKey(n.ID, ic.DAO, keyRegisterPrice)) {
		panic("insufficient gas")
	}
	err = n.modifyCandidate(ic, pub, true)
	if err != nil {
		panic(err)
	}
	return stackitem.NewBool(true)
}

func (n *NEO) unregisterCandidate(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	pub := toPublicKey(args[0])
	ok, err := runtime.CheckKeyedWitness(ic, pub)
	if err != nil {
		panic(err)
	} else if !ok {
		return stackitem.NewBool(false)
	}
	err = n.modifyCandidate(ic, pub, false)
	if err != nil {
		panic(err)
	}
	return stackitem.NewBool(true)
}

func (n *NEO) modifyCandidate(ic *interop.Context, pub *keys.PublicKey, register bool) error {
	key := makeCandidateKey(pub)
	si := ic.DAO.GetStorageItem(n.ID, key)
	c := new(candidate)
	if si != nil {
		var err error
		c, err = candidateFromBytes(si)
		if err != nil {
			return err
		}
	}
	if c.Registered == register {
		return nil
	}
	c.Registered = register
	if !c.Registered && c.Votes.Sign() == 0 {
		ic.DAO.DeleteStorageItem(n.ID, key)
	} else {
		ic.DAO.PutStorageItem(n.ID, key, candidateToBytes(c))
	}
	ev := stackitem.NewArray([]stackitem.Item{
		stackitem.NewByteArray(pub.Bytes()),
		stackitem.NewBool(c.Registered),
		stackitem.NewBigInteger(&c.Votes),
	})
	ic.AddNotification(n.Hash, "CandidateStateChanged", ev)
	return nil
}

func (n *NEO) vote(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	acc := toUint160(args[0])
	var pub *keys.PublicKey
	if _, ok := args[1].(stackitem.Null); !ok {
		pub = toPublicKey(args[1])
	}
	err := n.VoteInternal(ic, acc, pub)
	return stackitem.NewBool(err == nil)
}

// VoteInternal votes from the account h for the candidate pub.
func (n *NEO) VoteInternal(ic *interop.Context, h util.Uint160, pub *keys.PublicKey) error {
	ok, err := runtime.CheckHashedWitness(ic, h)
	if err != nil {
		return err
	} else if !ok {
		return errors.New("invalid signature")
	}
	key := n.makeAccountKey(h)
	si := ic.DAO.GetStorageItem(n.ID, key)
	if si == nil {
		return errors.New("invalid account")
	}
	acc, err := n.balanceStateFromBytes(si)
	if err != nil {
		return err
	}
	if pub != nil {
		valKey := makeCandidateKey(pub)
		valSi := ic.DAO.GetStorageItem(n.ID, valKey)
		if valSi == nil {
			return errors.New("unknown candidate")
		}
		cd, err := candidateFromBytes(valSi)
		if err != nil {
			return err
		}
		if !cd.Registered {
			return errors.New("validator must be registered")
		}
	}

	if (acc.VoteTo == nil) != (pub == nil) {
		val := &acc.Balance
		if acc.VoteTo != nil {
			val = new(big.Int).Neg(val)
		}
		votersCount := getIntWithKey(n.ID, ic.DAO, keyVotersCount)
		setIntWithKey(n.ID, ic.DAO, keyVotersCount, votersCount+val.Int64())
	}
	oldVote := acc.VoteTo
	if err := n.modifyVotes(ic.DAO, oldVote, new(big.Int).Neg(&acc.Balance)); err != nil {
		return err
	}
	if err := n.modifyVotes(ic.DAO, pub, &acc.Balance); err != nil {
		return err
	}
	acc.VoteTo = pub
	ic.DAO.PutStorageItem(n.ID, key, n.balanceStateToBytes(acc))

	ev := stackitem.NewArray([]stackitem.Item{
		stackitem.NewByteArray(h.BytesBE()),
		keyToStackItem(oldVote),
		keyToStackItem(pub),
		stackitem.NewBigInteger(&acc.Balance),
	})
	ic.AddNotification(n.Hash, "Vote", ev)
	return nil
}

func keyToStackItem(k *keys.PublicKey) stackitem.Item {
	if k == nil {
		return stackitem.Null{}
	}
	return stackitem.NewByteArray(k.Bytes())
}

// modifyVotes adds the given value to the candidate's votes, no-op for a
// nil candidate.
func (n *NEO) modifyVotes(d *dao.Simple, pub *keys.PublicKey, value *big.Int) error {
	if pub == nil || value.Sign() == 0 {
		return nil
	}
	key := makeCandidateKey(pub)
	si := d.GetStorageItem(n.ID, key)
	if si == nil {
		return errors.New("unknown candidate")
	}
	cd, err := candidateFromBytes(si)
	if err != nil {
		return err
	}
	cd.Votes.Add(&cd.Votes, value)
	if cd.Votes.Sign() < 0 {
		return errors.New("negative votes")
	}
	if !cd.Registered && cd.Votes.Sign() == 0 {
		d.DeleteStorageItem(n.ID, key)
	} else {
		d.PutStorageItem(n.ID, key, candidateToBytes(cd))
	}
	return nil
}

func makeCandidateKey(pub *keys.PublicKey) []byte {
	return append([]byte{prefixCandidate}, pub.Bytes()...)
}

func candidateFromBytes(data []byte) (*candidate, error) {
	item, err := stackitem.Deserialize(data)
	if err != nil {
		return nil, err
	}
	str, ok := item.Value().([]stackitem.Item)
	if !ok || len(str) != 2 {
		return nil, errors.New("invalid candidate state")
	}
	reg, err := str[0].TryBool()
	if err != nil {
		return nil, err
	}
	votes, err := str[1].TryInteger()
	if err != nil {
		return nil, err
	}
	return &candidate{Registered: reg, Votes: *votes}, nil
}

func candidateToBytes(c *candidate) []byte {
	it := stackitem.NewStruct([]stackitem.Item{
		stackitem.NewBool(c.Registered),
		stackitem.NewBigInteger(&c.Votes),
	})
	data, err := stackitem.Serialize(it)
	if err != nil {
		panic(err)
	}
	return data
}

type keyWithVotes struct {
	Key   string
	Votes *big.Int
}

func (n *NEO) getCandidates(d *dao.Simple, sortByKey bool) ([]keyWithVotes, error) {
	var arr []keyWithVotes
	var err error
	d.Seek(n.ID, storage.SeekRange{Prefix: []byte{prefixCandidate}}, func(k, v []byte) bool {
		var c *candidate
		c, err = candidateFromBytes(v)
		if err != nil {
			return false
		}
		if c.Registered {
			arr = append(arr, keyWithVotes{Key: string(k[1:]), Votes: &c.Votes})
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if !sortByKey {
		// Sort by votes descending, then by key ascending.
		sort.Slice(arr, func(i, j int) bool {
			if cmp := arr[i].Votes.Cmp(arr[j].Votes); cmp != 0 {
				return cmp > 0
			}
			return arr[i].Key < arr[j].Key
		})
	}
	return arr, nil
}

func (n *NEO) getCandidatesCall(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	validators, err := n.getCandidates(ic.DAO, true)
	if err != nil {
		panic(err)
	}
	arr := make([]stackitem.Item, len(validators))
	for i := range validators {
		arr[i] = stackitem.NewStruct([]stackitem.Item{
			stackitem.NewByteArray([]byte(validators[i].Key)),
			stackitem.NewBigInteger(validators[i].Votes),
		})
	}
	return stackitem.NewArray(arr)
}

func (n *NEO) getAllCandidatesCall(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	var seekres []storage.KeyValue
	ic.DAO.Seek(n.ID, storage.SeekRange{Prefix: []byte{prefixCandidate}}, func(k, v []byte) bool {
		c, err := candidateFromBytes(v)
		if err == nil && c.Registered {
			votes, err := stackitem.Serialize(stackitem.NewBigInteger(&c.Votes))
			if err == nil {
				seekres = append(seekres, storage.KeyValue{
					Key:   append([]byte{}, k[1:]...),
					Value: votes,
				})
			}
		}
		return true
	})
	iter := istorage.NewIterator(seekres, []byte{}, istorage.FindRemovePrefix|istorage.FindDeserialize)
	return stackitem.NewInterop(iter)
}

func (n *NEO) getCandidateVoteCall(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	pub := toPublicKey(args[0])
	key := makeCandidateKey(pub)
	si := ic.DAO.GetStorageItem(n.ID, key)
	if si == nil {
		return stackitem.Make(-1)
	}
	c, err := candidateFromBytes(si)
	if err != nil || !c.Registered {
		return stackitem.Make(-1)
	}
	return stackitem.NewBigInteger(&c.Votes)
}

func (n *NEO) getAccountState(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	key := n.makeAccountKey(toUint160(args[0]))
	si := ic.DAO.GetStorageItem(n.ID, key)
	if si == nil {
		return stackitem.Null{}
	}
	item, err := stackitem.Deserialize(si)
	if err != nil {
		panic(err)
	}
	return item
}

// ComputeCommitteeMembers returns the public keys of the committee as of
// the current state: elected candidates when the voter turnout and the
// candidate list are sufficient, the standby committee otherwise.
func (n *NEO) ComputeCommitteeMembers(d *dao.Simple) (keys.PublicKeys, error) {
	standby, err := n.standbyCommittee()
	if err != nil {
		return nil, err
	}
	committeeSize := int(n.cfg.CommitteeSize)
	if committeeSize == 0 {
		committeeSize = len(standby)
	}

	votersCount := big.NewInt(getIntWithKeyDefault(n.ID, d, keyVotersCount, 0))
	votersCount.Mul(votersCount, big.NewInt(effectiveVoterTurnout))
	voterTurnout := votersCount.Cmp(big.NewInt(NEOTotalSupply)) >= 0

	cands, err := n.getCandidates(d, false)
	if err != nil {
		return nil, err
	}
	if !voterTurnout || len(cands) < committeeSize {
		return standby, nil
	}
	res := make(keys.PublicKeys, committeeSize)
	for i := range res {
		pub := new(keys.PublicKey)
		if err := pub.DecodeBytes([]byte(cands[i].Key)); err != nil {
			return nil, err
		}
		res[i] = pub
	}
	return res, nil
}

func (n *NEO) standbyCommittee() (keys.PublicKeys, error) {
	res := make(keys.PublicKeys, 0, len(n.cfg.StandbyCommittee))
	for _, ks := range n.cfg.StandbyCommittee {
		pub, err := keys.NewPublicKeyFromString(ks)
		if err != nil {
			return nil, fmt.Errorf("invalid standby committee key %s: %w", ks, err)
		}
		res = append(res, pub)
	}
	return res, nil
}

func committeeAddress(committee keys.PublicKeys) (util.Uint160, error) {
	script, err := smartcontract.CreateMajorityMultiSigRedeemScript(committee)
	if err != nil {
		return util.Uint160{}, err
	}
	return hash.Hash160(script), nil
}

// GetCommitteeAddress returns the committee address as of the current
// state.
func (n *NEO) GetCommitteeAddress(d *dao.Simple) (util.Uint160, error) {
	committee, err := n.ComputeCommitteeMembers(d)
	if err != nil {
		return util.Uint160{}, err
	}
	sort.Sort(committee)
	return committeeAddress(committee)
}

// checkCommittee returns true when the execution witnesses the committee
// address.
func (n *NEO) checkCommittee(ic *interop.Context) bool {
	addr, err := n.GetCommitteeAddress(ic.DAO)
	if err != nil {
		return false
	}
	ok, err := runtime.CheckHashedWitness(ic, addr)
	return err == nil && ok
}

func (n *NEO) getCommittee(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	committee, err := n.ComputeCommitteeMembers(ic.DAO)
	if err != nil {
		panic(err)
	}
	sort.Sort(committee)
	return pubsToArray(committee)
}

func (n *NEO) getCommitteeAddress(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	addr, err := n.GetCommitteeAddress(ic.DAO)
	if err != nil {
		panic(err)
	}
	return stackitem.NewByteArray(addr.BytesBE())
}

func (n *NEO) getNextBlockValidators(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	committee, err := n.ComputeCommitteeMembers(ic.DAO)
	if err != nil {
		panic(err)
	}
	count := int(n.cfg.ValidatorsCount)
	if count == 0 || count > len(committee) {
		count = len(committee)
	}
	validators := committee[:count].Copy()
	sort.Sort(validators)
	return pubsToArray(validators)
}

func pubsToArray(pubs keys.PublicKeys) stackitem.Item {
	arr := make([]stackitem.Item, len(pubs))
	for i := range pubs {
		arr[i] = stackitem.NewByteArray(pubs[i].Bytes())
	}
	return stackitem.NewArray(arr)
}

func (n *NEO) getGASPerBlock(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	gas := n.getGASPerBlockInternal(ic.DAO, ic.BlockHeight())
	return stackitem.NewBigInteger(gas)
}

func (n *NEO) getGASPerBlockInternal(d *dao.Simple, index uint32) *big.Int {
	var res = big.NewInt(5 * GASFactor)
	d.Seek(n.ID, storage.SeekRange{Prefix: []byte{prefixGASPerBlock}}, func(k, v []byte) bool {
		recIndex := uint32(k[1])<<24 | uint32(k[2])<<16 | uint32(k[3])<<8 | uint32(k[4])
		if recIndex > index {
			return false
		}
		res = bigint.FromBytes(v)
		return true
	})
	return res
}

func (n *NEO) setGASPerBlock(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	gas := toBigInt(args[0])
	if gas.Sign() == -1 || gas.Cmp(big.NewInt(10*GASFactor)) == 1 {
		panic("invalid value")
	}
	if !n.checkCommittee(ic) {
		panic("invalid committee signature")
	}
	n.putGASRecord(ic.DAO, ic.BlockHeight()+1, gas.Int64())
	return stackitem.Null{}
}

// putGASRecord stores the gas-per-block value effective from the given
// index, the key keeps indexes big-endian so that seeks are ordered.
func (n *NEO) putGASRecord(d *dao.Simple, index uint32, value int64) {
	key := []byte{prefixGASPerBlock, byte(index >> 24), byte(index >> 16), byte(index >> 8), byte(index)}
	d.PutStorageItem(n.ID, key, bigint.ToBytes(big.NewInt(value)))
}

func (n *NEO) getRegisterPrice(ic *interop.Context, _ []stackitem.Item) stackitem.Item {
	return stackitem.Make(getIntWithKey(n.ID, ic.DAO, keyRegisterPrice))
}

func (n *NEO) setRegisterPrice(ic *interop.Context, args []stackitem.Item) stackitem.Item {
	price := toBigInt(args[0])
	if price.Sign() <= 0 || !price.IsInt64() {
		panic("invalid register price")
	}
	if !n.checkCommittee(ic) {
		panic("invalid committee signature")
	}
	setIntWithKey(n.ID, ic.DAO, keyRegisterPrice, price.Int64())
	return stackitem.Null{}
}
