package rpc

import (
	"encoding/json"
)

type assetMintParams struct {
	Owner string `json:"owner"`
	ID    uint64 `json:"id"`
}

func (s *Server) handleAssetMint(params []json.RawMessage) (interface{}, *RPCError) {
	var p assetMintParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parseAddressParam("owner", p.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.MintAsset(owner, p.ID); err != nil {
		return nil, errorToRPC(err)
	}
	s.logger.Info("asset minted", "asset_id", p.ID, "owner", p.Owner)
	return map[string]bool{"minted": true}, nil
}

type assetQueryParams struct {
	ID uint64 `json:"id"`
}

func (s *Server) handleAssetOwnerOf(params []json.RawMessage) (interface{}, *RPCError) {
	var p assetQueryParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	owner, err := s.node.AssetOwner(p.ID)
	if err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]string{"owner": formatAddress(owner)}, nil
}

type assetApproveParams struct {
	Caller  string `json:"caller"`
	Spender string `json:"spender"`
	ID      uint64 `json:"id"`
}

func (s *Server) handleAssetApprove(params []json.RawMessage) (interface{}, *RPCError) {
	var p assetApproveParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	spender, rpcErr := parseAddressParam("spender", p.Spender)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.ApproveAsset(caller, spender, p.ID); err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]bool{"approved": true}, nil
}

type assetTransferParams struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	ID     uint64 `json:"id"`
}

func (s *Server) handleAssetTransfer(params []json.RawMessage) (interface{}, *RPCError) {
	var p assetTransferParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	to, rpcErr := parseAddressParam("to", p.To)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.TransferAsset(caller, to, p.ID); err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]bool{"transferred": true}, nil
}

type balanceParams struct {
	Address string `json:"address"`
}

func (s *Server) handleGetBalance(params []json.RawMessage) (interface{}, *RPCError) {
	var p balanceParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddressParam("address", p.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.node.Balance(addr)
	if err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]string{"balance": balance.String()}, nil
}

type creditParams struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

func (s *Server) handleCredit(params []json.RawMessage) (interface{}, *RPCError) {
	var p creditParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddressParam("address", p.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmountParam("amount", p.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.Credit(addr, amount); err != nil {
		return nil, errorToRPC(err)
	}
	s.logger.Info("account credited", "address", p.Address, "amount", amount.String())
	return map[string]bool{"credited": true}, nil
}
