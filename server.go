package main

import (
	"log"
	"os"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// runAsService runs the chaincode as an external service.
func runAsService(cc *contractapi.ContractChaincode) {
	server := &shim.ChaincodeServer{
		CCID:    os.Getenv("CHAINCODE_ID"),
		Address: os.Getenv("CHAINCODE_SERVER_ADDRESS"),
		CC:      cc,
		TLSProps: shim.TLSProperties{
			Disabled: true, // TLS is terminated by the peer network
		},
	}

	if err := server.Start(); err != nil {
		log.Fatalf("Error starting product custody chaincode server: %v", err)
	}
}
